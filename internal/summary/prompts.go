package summary

import (
	"fmt"
	"strings"
)

// koConversationLimit keeps the Korean main prompt small; that prompt is
// tuned for latency.
const (
	koConversationLimit = 3000
	koFileLimit         = 10
)

// MainPrompt builds the full analysis prompt.
func MainPrompt(lang, conversations string, files []string, diffStats, analysis string) string {
	if lang == "ko" {
		return mainPromptKO(conversations, files, diffStats, analysis)
	}
	return fmt.Sprintf(mainPromptEN, strings.Join(files, ", "), diffStats, conversations, analysis)
}

// SimplifiedPrompt builds the shorter retry prompt.
func SimplifiedPrompt(lang, conversations string, files []string, diffStats string) string {
	if lang == "ko" {
		return fmt.Sprintf(simplifiedPromptKO, conversations, strings.Join(files, ", "), diffStats)
	}
	return fmt.Sprintf(simplifiedPromptEN, conversations, strings.Join(files, ", "), diffStats)
}

func mainPromptKO(conversations string, files []string, diffStats, analysis string) string {
	shown := files
	if len(shown) > koFileLimit {
		shown = shown[:koFileLimit]
	}
	list := strings.Join(shown, ", ")
	if len(files) > koFileLimit {
		list += fmt.Sprintf(" 외 %d개", len(files)-koFileLimit)
	}
	return fmt.Sprintf(mainPromptKOTemplate, list, diffStats, truncateRunes(conversations, koConversationLimit), analysis)
}

const mainPromptEN = `Analyze this commit to capture the complete development trail.

## 🗂 Changed Files:
%s

## 📊 Change Statistics:
%s

## 💬 Related Conversations:
%s

## 📈 Conversation Pattern Analysis:
%s

**IMPORTANT: Return only valid JSON. No markdown, no code blocks, no explanations. Only JSON output.**

**CRITICAL INSTRUCTIONS FOR FULL TRAIL COVERAGE:**
1. Capture the complete journey, not just the final result
2. Include ALL attempted approaches, even if they didn't work
3. Document key decision points and rationale
4. Preserve important error messages or debugging insights
5. Note any external references, documentation, or resources consulted
6. Include any performance considerations or trade-offs discussed

Response format (valid JSON only):
{
  "intent": "The initial problem/goal and how understanding evolved during development. Include any pivots or refinements in approach",
  "changes": "Complete list of modifications including: files changed, specific methods/functions affected, configuration changes, test additions, and any refactoring done. Be specific about WHAT changed and WHERE",
  "context": "Full development trail including: initial approach, challenges encountered, solutions tried, debugging process, key insights discovered, decisions made and why, any remaining considerations or follow-up items. This should tell the complete story of how this code came to be"
}

JSON response:`

const simplifiedPromptEN = `Analyze this commit focusing on the development flow:

## 💬 Conversations:
%s

## 📁 Files:
%s

## 📊 Changes:
%s

**IMPORTANT: Return only valid JSON. No markdown or explanations. JSON only.**

**FOCUS: Capture the development flow concisely but completely**

Response format (valid JSON only):
{
  "intent": "Initial problem → final goal (show evolution)",
  "changes": "File changes with specific locations and modifications",
  "context": "Development flow: start → challenges → solutions → outcome"
}

JSON response:`

const mainPromptKOTemplate = `이 커밋의 맥락을 분석하여 향후 개발에 도움이 되는 정보를 제공하세요.

## 📁 변경된 파일:
%s

## 📊 변경 통계:
%s

## 💬 관련 대화:
%s

## 📈 개발 과정 분석:
%s

**핵심 원칙:**
- 향후 이 커밋을 이해하는데 도움이 되는 맥락 포착
- 성공한 시도와 실패한 시도 모두 포함하여 전체 개발 과정 표현
- "무엇"이 아닌 "왜"에 초점

다음 세 가지 핵심 요소를 포함한 JSON 반환:

{
  "what_changed": "이 커밋에서 변경된 모든 내용의 포괄적인 목록. 특정 파일, 함수, 로직 수정 사항과 위치를 상세하고 정확하게 기술",

  "conversation_flow": "대화가 어떻게 진행되었는지 개발 여정. 토론이 어떻게 발전했나? 어떤 접근법을 시도했나? 어떤 문제가 발생했고 어떻게 해결했나? 주요 결정 포인트 포함",

  "intent": "이러한 변경의 목적. 대화에서 명시적으로 언급되었다면 인용. 그렇지 않으면 맥락에서 추론. 왜 이 작업이 필요했나? 어떤 문제를 해결하나?"
}

JSON 응답:`

const simplifiedPromptKO = `맥락을 위한 간결한 커밋 분석을 제공하세요.

## 💬 대화:
%s

## 📁 파일:
%s

## 📊 변경사항:
%s

간단한 JSON 요약 반환:

{
  "what_changed": "주요 수정 사항을 한글 문장으로 설명",
  "conversation_flow": "개발 과정을 한글 문장으로 설명",
  "intent": "변경 목적을 한글 문장으로 설명"
}

JSON response:`
