// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package quiz

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxQuestions caps a single request.
const MaxQuestions = 50

// Request is one quiz submission.
type Request struct {
	Topic string `form:"topic"`
	Count int    `form:"count"`
}

// Validate rejects a request before it reaches the model.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return &GenerationError{Kind: KindInvalidRequest, Message: "Please provide the context and number of questions."}
	}
	if r.Count < 1 {
		return &GenerationError{Kind: KindInvalidRequest, Message: "Number of questions must be at least 1."}
	}
	if r.Count > MaxQuestions {
		return &GenerationError{Kind: KindInvalidRequest, Message: fmt.Sprintf("Number of questions must be at most %d.", MaxQuestions)}
	}
	return nil
}

// BuildPrompt embeds the topic and count verbatim into the fixed template.
func BuildPrompt(r Request) string {
	return fmt.Sprintf(`You are an expert in creating quizzes based on the context.
Provide four options for each question.
Context: %s
Number of Questions: %d
`, strings.TrimSpace(r.Topic), r.Count)
}

// Result is the model's answer, passed through unmodified apart from
// surrounding whitespace.
type Result struct {
	Text      string
	Blocks    int
	Requested int
}

// Matches reports whether the detected question blocks match the request.
func (r *Result) Matches() bool {
	return r.Blocks == r.Requested
}

var questionStart = regexp.MustCompile(`(?im)^[ \t>#*_]*(?:(?:question|q)[ \t]*(\d+)\b|(\d+)[.)](?:[ \t]|$))`)

// CountQuestionBlocks counts the distinct question numbers that start a line,
// such as "1.", "2)", "Question 3" or "**Q4:**".
func CountQuestionBlocks(text string) int {
	seen := make(map[int]struct{})
	for _, m := range questionStart.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			continue
		}
		seen[n] = struct{}{}
	}
	return len(seen)
}
