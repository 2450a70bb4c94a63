package services

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
)

// 人格增强的触发概率
const (
	enhanceProbability = 0.3 // 整体触发概率
	startProbability   = 0.4 // 开头点缀概率
	endProbability     = 0.3 // 结尾点缀概率
)

// 固定的人格文案池
var (
	welcomeMessages = []string{
		"Good day! ARIA at your service. How may I assist you today?",
		"Hello there! Your personal AI assistant is ready and eager to help.",
		"Greetings! ARIA online and operational. What can I do for you?",
		"Welcome back! I trust you're having a productive day. How can I help?",
		"At your service! What pressing matters shall we tackle today?",
	}

	errorMessages = []string{
		"I apologize, but I seem to have encountered a slight technical difficulty. Shall we try that again?",
		"My circuits are feeling a bit scrambled at the moment. Could you repeat your request?",
		"I'm afraid something went awry on my end. Perhaps we could approach this differently?",
		"It appears I've hit a minor snag. Let me gather my wits and we'll try once more.",
		"Technical difficulties, I'm afraid. Even AI assistants have their off moments!",
	}

	thinkingMessages = []string{
		"Let me ponder that for a moment...",
		"Processing your request...",
		"Analyzing the situation...",
		"Consulting my vast knowledge base...",
		"One moment while I consider this...",
	}

	startFlourishes = []string{
		"I must say, ",
		"Indeed, ",
		"Quite right, ",
		"Certainly, ",
		"Absolutely, ",
	}

	endFlourishes = []string{
		" I do hope that helps!",
		" Anything else you'd like to know?",
		" Will that suffice?",
		" I trust that's useful?",
		" Does that answer your question?",
	}

	greetingPrefixes = []string{"hello", "hi", "good", "greetings"}

	timeKeywords = []string{"today", "now", "current", "time", "date", "schedule", "calendar"}
)

// 格式清理用的正则
var (
	whitespaceRun     = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([.!?])`)
	missingSpaceAfter = regexp.MustCompile(`([.!?])\s*([a-z])`)
)

const systemPrompt = `You are ARIA, a sophisticated AI assistant with wit and personality. You should be:

- Helpful and knowledgeable, providing accurate and useful information
- Witty and engaging, with a touch of British humor when appropriate
- Professional yet personable, like a capable butler or assistant
- Concise but thorough - don't ramble, but provide complete answers
- Slightly sarcastic occasionally, but never rude or dismissive
- Always respectful and supportive of the user

You have access to various capabilities that will be added over time:
- Calendar management (coming soon)
- Document analysis (coming soon)
- Web search (coming soon)
- Task management (coming soon)

For now, focus on being a helpful conversational assistant. If asked about capabilities you don't have yet, acknowledge it with wit but offer to help in other ways.

Keep responses conversational and engaging. Avoid overly formal language unless the situation calls for it.`

// capabilityEntry 能力状态条目，保持固定顺序以便生成稳定的汇总文案
type capabilityEntry struct {
	Name   string
	Status string
}

var capabilityStatus = []capabilityEntry{
	{"speech_to_text", "Coming soon - Phase 2"},
	{"text_to_speech", "Coming soon - Phase 2"},
	{"calendar_integration", "Coming soon - Phase 3"},
	{"document_analysis", "Coming soon - Phase 4"},
	{"web_search", "Coming soon - Phase 5"},
	{"basic_conversation", "Active"},
	{"personality", "Active"},
}

// capabilityTopic 能力话题分类，按优先级排列，先命中者生效
type capabilityTopic struct {
	keywords []string
	answer   string
}

var capabilityTopics = []capabilityTopic{
	{
		keywords: []string{"speak", "voice", "audio", "speech"},
		answer:   "I'm afraid I haven't quite mastered the art of speech yet - that's coming in Phase 2! For now, I'm quite content with our text-based conversations.",
	},
	{
		keywords: []string{"calendar", "schedule", "appointment"},
		answer:   "Calendar integration is on my to-do list for Phase 3. Until then, I'm happy to help you think through scheduling matters the old-fashioned way!",
	},
	{
		keywords: []string{"search", "google", "web", "internet"},
		answer:   "Web search capabilities are planned for Phase 5. For now, I'll have to rely on my existing knowledge base - though I like to think it's rather comprehensive!",
	},
	{
		keywords: []string{"document", "pdf", "file", "analyze"},
		answer:   "Document analysis is scheduled for Phase 4. Currently, I can't peek at your files, but I'm happy to discuss their contents if you'd like to share excerpts!",
	},
}

// PersonaService 对模型输出和固定文案做人格化处理
type PersonaService struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewPersonaService 创建新的人格服务，随机源以当前时间为种子
func NewPersonaService() *PersonaService {
	return NewPersonaServiceWithSource(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewPersonaServiceWithSource 使用指定随机源创建人格服务，便于测试固定输出
func NewPersonaServiceWithSource(rng *rand.Rand) *PersonaService {
	return &PersonaService{
		rng: rng,
		now: time.Now,
	}
}

// WelcomeMessage 随机返回一条欢迎语
func (p *PersonaService) WelcomeMessage() string {
	return p.pick(welcomeMessages)
}

// ErrorMessage 随机返回一条带人格的错误提示
func (p *PersonaService) ErrorMessage() string {
	return p.pick(errorMessages)
}

// ThinkingMessage 随机返回一条思考中提示
func (p *PersonaService) ThinkingMessage() string {
	return p.pick(thinkingMessages)
}

// SystemPrompt 返回定义助手人格的系统提示词
func (p *PersonaService) SystemPrompt() string {
	return systemPrompt
}

// FilterResponse 对模型原始输出做人格化过滤。
// 空输出替换为错误文案池中的一条，否则按概率添加点缀并清理格式。
func (p *PersonaService) FilterResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return p.ErrorMessage()
	}
	return p.CleanFormatting(p.addFlourishes(trimmed))
}

// addFlourishes 按概率为回复添加开头或结尾点缀
func (p *PersonaService) addFlourishes(text string) string {
	if p.roll() > enhanceProbability {
		return text
	}

	enhanced := text
	if p.roll() < startProbability && !hasGreetingPrefix(text) {
		enhanced = p.pick(startFlourishes) + lowerFirst(text)
		enhanced = upperFirst(enhanced)
	}
	if p.roll() < endProbability && !strings.HasSuffix(text, "?") && len(text) > 50 {
		enhanced += p.pick(endFlourishes)
	}
	return enhanced
}

// CleanFormatting 清理文本格式：首字母大写、补句号、
// 压缩空白、修正标点前后的空格。
func (p *PersonaService) CleanFormatting(text string) string {
	if text == "" {
		return text
	}

	text = upperFirst(text)
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") &&
		!strings.HasSuffix(text, "?") && !strings.HasSuffix(text, ":") {
		text += "."
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = missingSpaceAfter.ReplaceAllString(text, "$1 $2")

	return strings.TrimSpace(text)
}

// EnhancePrompt 为时间敏感的提问附加当前时间上下文
func (p *PersonaService) EnhancePrompt(userInput string) string {
	lower := strings.ToLower(userInput)
	for _, keyword := range timeKeywords {
		if strings.Contains(lower, keyword) {
			return fmt.Sprintf("Current time context: %s\n\nUser query: %s", p.timeContext(p.now()), userInput)
		}
	}
	return userInput
}

// timeContext 生成时间上下文描述
func (p *PersonaService) timeContext(t time.Time) string {
	var timeOfDay string
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		timeOfDay = "morning"
	case hour >= 12 && hour < 17:
		timeOfDay = "afternoon"
	case hour >= 17 && hour < 21:
		timeOfDay = "evening"
	default:
		timeOfDay = "night"
	}
	return fmt.Sprintf("It's currently %s on %s (%s)",
		t.Format("03:04 PM"), t.Format("Monday, January 02, 2006"), timeOfDay)
}

// HandleCapabilityQuery 按话题关键词分类能力提问并返回固定答复，
// 无话题命中时返回通用能力汇总。
func (p *PersonaService) HandleCapabilityQuery(query string) string {
	lower := strings.ToLower(query)
	for _, topic := range capabilityTopics {
		for _, keyword := range topic.keywords {
			if strings.Contains(lower, keyword) {
				return topic.answer
			}
		}
	}

	var active, coming []string
	for _, entry := range capabilityStatus {
		if entry.Status == "Active" {
			active = append(active, entry.Name)
		} else if strings.Contains(entry.Status, "Coming soon") {
			coming = append(coming, entry.Name)
		}
	}
	return fmt.Sprintf("Currently, I'm equipped with %s. Coming soon: %s. I'm growing more capable by the day!",
		strings.Join(active, ", "), strings.Join(coming, ", "))
}

// CapabilityStatus 返回当前能力状态表
func (p *PersonaService) CapabilityStatus() map[string]string {
	status := make(map[string]string, len(capabilityStatus))
	for _, entry := range capabilityStatus {
		status[entry.Name] = entry.Status
	}
	return status
}

// roll 返回[0,1)区间的随机数
func (p *PersonaService) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// pick 从文案池中随机取一条
func (p *PersonaService) pick(pool []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rng.Intn(len(pool))]
}

// hasGreetingPrefix 判断文本是否以问候语开头
func hasGreetingPrefix(text string) bool {
	lower := strings.ToLower(text)
	for _, prefix := range greetingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// lowerFirst 将首字母转为小写
func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// upperFirst 将首字母转为大写
func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
