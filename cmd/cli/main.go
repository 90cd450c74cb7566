package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"context-chatbot/internal/app"
	"context-chatbot/pkg/config"
	"context-chatbot/pkg/tracing"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("context-chatbot cli " + version)
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "chat":
		runChat(args)
	case "ask":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: chatbot ask <message>\n")
			os.Exit(1)
		}
		runAsk(strings.Join(args, " "))
	case "clear":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: chatbot clear <session_id>\n")
			os.Exit(1)
		}
		runClear(args[0])
	case "local":
		runLocal()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: chatbot <command> [args]")
	fmt.Println("  version            - 显示版本")
	fmt.Println("  health             - 检查 API 服务状态")
	fmt.Println("  config             - 显示配置概要")
	fmt.Println("  chat [session_id]  - 交互式对话（通过 API）")
	fmt.Println("  ask <message>      - 发送单条消息并打印回复")
	fmt.Println("  clear <session_id> - 清空会话历史")
	fmt.Println("  local              - 进程内交互式对话（不经过 API）")
}

func runHealth() {
	out, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("status=%s agent=%s\n", out["status"], out["agent"])
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("model.llm.provider=%s\n", cfg.Model.LLM.Provider)
	fmt.Printf("model.llm.model=%s\n", cfg.Model.LLM.Model)
	fmt.Printf("model.llm.base_url=%s\n", cfg.Model.LLM.BaseURL)
	fmt.Printf("search.simulated=%t\n", cfg.SimulatedSearch())
	fmt.Printf("fallback.agent.enabled=%t\n", cfg.AgentEnabled())
	fmt.Printf("session.store=%s\n", cfg.Session.Store)
}

func runAsk(message string) {
	resp, err := postChat(message, os.Getenv("CHATBOT_SESSION_ID"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
		os.Exit(1)
	}
	printReply(os.Stdout, resp)
}

func runClear(sessionID string) {
	if err := clearSession(sessionID); err != nil {
		fmt.Fprintf(os.Stderr, "清空会话失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("cleared", sessionID)
}

func runChat(args []string) {
	sessionID := os.Getenv("CHATBOT_SESSION_ID")
	if len(args) > 0 {
		sessionID = args[0]
	}
	repl(os.Stdin, os.Stdout, func(message string) (*chatReply, error) {
		resp, err := postChat(message, sessionID)
		if err == nil && resp.SessionID != "" {
			sessionID = resp.SessionID
		}
		return resp, err
	})
}

func runLocal() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer b.Close(ctx)

	if tc := cfg.Monitoring.Tracing; tc.Enable {
		tp, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    tc.ServiceName,
			ExportEndpoint: tc.ExportEndpoint,
			Insecure:       tc.Insecure,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "初始化 tracing 失败: %v\n", err)
		} else {
			defer tp.Shutdown(ctx)
		}
	}

	sessionID := ""
	repl(os.Stdin, os.Stdout, func(message string) (*chatReply, error) {
		resp := b.Controller.Handle(ctx, sessionID, message)
		sessionID = resp.SessionID
		return &chatReply{Answer: resp.Answer, PathUsed: string(resp.PathUsed), SessionID: resp.SessionID, Error: resp.Error}, nil
	})
}

// repl 读取一行发送一条，quit/exit/q 结束
func repl(in io.Reader, out io.Writer, send func(message string) (*chatReply, error)) {
	fmt.Fprintln(out, "Context-Aware Chatbot (type 'quit' to exit)")
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "You: ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg != "" && !isQuit(msg) {
			resp, sendErr := send(msg)
			if sendErr != nil {
				fmt.Fprintf(out, "Error: %v\n", sendErr)
			} else {
				printReply(out, resp)
			}
		}
		if err != nil || isQuit(msg) {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
	}
}

func isQuit(msg string) bool {
	switch strings.ToLower(msg) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func printReply(out io.Writer, resp *chatReply) {
	fmt.Fprintf(out, "Bot: %s\n", resp.Answer)
	fmt.Fprintf(out, "     [path=%s session=%s]\n", resp.PathUsed, resp.SessionID)
}
