// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import "strings"

const presencePrompt = `You are a context analyzer. Determine if the user's message includes background context or is just a direct question.

Rules:
- If the message includes background information, output "context_provided"
- If the message is just a direct question without context, output "context_missing"

User Message: {input}

Analysis: Let me check if this message contains sufficient context...

Decision:`

const relevancePrompt = `You check whether a piece of context is useful for answering a question.

Rules:
- If the context contains information that helps answer the question, output "relevant"
- If the context is about something else, output "irrelevant"
- Output exactly one word.

Context:
{context}

Question:
{question}

Decision:`

const splitterPrompt = `You extract two fields from a user message: CONTEXT and QUESTION.

Rules:
- CONTEXT: only background details, definitions, examples, snippets the user provided.
- QUESTION: the actual question the user wants answered.
- If the message is just a question, CONTEXT should be empty.
- Output exactly in this format (no extra text):
CONTEXT:
<context here>

QUESTION:
<question here>

User Message:
{input}`

// render 替换模板中的 {name} 占位符
func render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
