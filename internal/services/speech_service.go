package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/models"
)

// 模式切换的固定话术
const (
	switchToChatMessage  = "Switching to chat mode. You can now type your messages."
	voiceAlreadyActive   = "Voice mode is already active."
	speechApologyMessage = "I'm sorry, I encountered an error processing your request."
)

// 模式切换触发短语，聊天模式优先匹配
var (
	chatSwitchPhrases = []string{
		"switch to chat", "go to chat", "chat mode", "text mode",
		"switch to text", "stop voice", "disable voice",
	}
	voiceSwitchPhrases = []string{
		"switch to voice", "voice mode", "speech mode", "talk mode",
		"enable voice", "start voice",
	}
)

// errEngineUnavailable 引擎不可用（未安装、探测失败），区别于调用中出错
var errEngineUnavailable = errors.New("语音引擎不可用")

// synthesizer 语音合成引擎接口
type synthesizer interface {
	// Name 引擎名称，用于日志
	Name() string

	// Probe 探测引擎是否可用
	Probe(ctx context.Context) bool

	// Synthesize 将文本合成为WAV音频
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// asrEngine 语音识别引擎接口
type asrEngine interface {
	// Transcribe 识别WAV文件并返回文本
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// SpeechService 语音服务：识别、合成降级链与模式切换检测
type SpeechService struct {
	cfg         config.SpeechConfig
	asr         asrEngine
	chain       []synthesizer // 按顺序尝试的真实引擎，静音兜底不在链内
	initialized bool
	mu          sync.Mutex
}

// NewSpeechService 创建新的语音服务，引擎在首次使用时惰性初始化
func NewSpeechService(cfg config.SpeechConfig) *SpeechService {
	return &SpeechService{cfg: cfg}
}

// Initialize 初始化语音引擎：解析ASR命令并按顺序探测TTS候选，
// 记录第一个探测成功的引擎。重复调用无副作用。
func (s *SpeechService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked(ctx)
}

func (s *SpeechService) initializeLocked(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	if s.asr == nil {
		s.asr = &whisperEngine{
			command: s.cfg.ASRCommand,
			model:   s.cfg.ASRModel,
			timeout: s.cfg.EngineTimeout,
		}
	}

	if s.chain == nil {
		for _, path := range s.cfg.KokoroPaths {
			engine := &kokoroSynthesizer{path: path, timeout: s.cfg.EngineTimeout}
			if engine.Probe(ctx) {
				log.Printf("发现Kokoro TTS引擎: %s", path)
				s.chain = append(s.chain, engine)
				break
			}
		}
		if len(s.chain) == 0 {
			log.Printf("未发现Kokoro TTS引擎，合成时使用系统引擎降级")
		}
		// 系统引擎始终作为降级候选
		s.chain = append(s.chain, &espeakSynthesizer{timeout: s.cfg.EngineTimeout})
	}

	s.initialized = true
	return nil
}

// Transcribe 将音频数据识别为文本，内部通过临时文件交给ASR引擎，
// 临时文件在所有退出路径上删除。识别失败向上传播。
func (s *SpeechService) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if err := s.Initialize(ctx); err != nil {
		return "", err
	}

	tempFile, err := os.CreateTemp("", "asr-*.wav")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %v", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(audioData); err != nil {
		tempFile.Close()
		return "", fmt.Errorf("写入临时文件失败: %v", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("关闭临时文件失败: %v", err)
	}

	text, err := s.asr.Transcribe(ctx, tempPath)
	if err != nil {
		return "", fmt.Errorf("语音识别失败: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Synthesize 将文本合成为WAV音频，空文本直接返回空缓冲区。
// 引擎按顺序降级，全部失败时返回静音，永不报错。
func (s *SpeechService) Synthesize(ctx context.Context, text, voice string) []byte {
	if strings.TrimSpace(text) == "" {
		return []byte{}
	}
	if err := s.Initialize(ctx); err != nil {
		return generateSilence(1.0, s.sampleRate())
	}

	engineErrored := false
	for _, engine := range s.chain {
		data, err := engine.Synthesize(ctx, text, voice)
		if err == nil && len(data) > 0 {
			return data
		}
		if err != nil && !errors.Is(err, errEngineUnavailable) {
			engineErrored = true
		}
		log.Printf("TTS引擎%s合成失败，尝试下一级: %v", engine.Name(), err)
	}

	// 静音兜底：引擎调用出错返回1秒，否则按文本长度估算
	duration := 0.1 * float64(len(text))
	if engineErrored {
		duration = 1.0
	}
	return generateSilence(duration, s.sampleRate())
}

// DetectModeSwitch 检测文本中的模式切换指令，未命中返回空
func (s *SpeechService) DetectModeSwitch(text string) models.SessionMode {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, phrase := range chatSwitchPhrases {
		if strings.Contains(lower, phrase) {
			return models.ModeChat
		}
	}
	for _, phrase := range voiceSwitchPhrases {
		if strings.Contains(lower, phrase) {
			return models.ModeVoice
		}
	}
	return ""
}

// SpeechToSpeech 完整的语音对话流程：识别、模式切换检测、生成、
// 人格过滤、合成。任何失败都转换为致歉话术的音频，不向调用方报错。
// 返回值中的切换模式供编排层应用，未检测到时为空。
func (s *SpeechService) SpeechToSpeech(ctx context.Context, audioData []byte, generate models.GenerateFunc, persona *PersonaService) (string, []byte, models.SessionMode) {
	transcription, err := s.Transcribe(ctx, audioData)
	if err != nil {
		log.Printf("语音对话流程出错: %v", err)
		return speechApologyMessage, s.Synthesize(ctx, speechApologyMessage, s.cfg.DefaultVoice), ""
	}

	if transcription == "" {
		return "", generateSilence(0.5, s.sampleRate()), ""
	}

	// 模式切换指令不进入模型
	if mode := s.DetectModeSwitch(transcription); mode != "" {
		var response string
		if mode == models.ModeChat {
			response = switchToChatMessage
		} else {
			response = voiceAlreadyActive
		}
		return response, s.Synthesize(ctx, response, s.cfg.DefaultVoice), mode
	}

	prompt := persona.EnhancePrompt(transcription)
	raw, err := generate(ctx, prompt)
	if err != nil {
		log.Printf("语音对话流程出错: %v", err)
		return speechApologyMessage, s.Synthesize(ctx, speechApologyMessage, s.cfg.DefaultVoice), ""
	}

	filtered := persona.FilterResponse(raw)
	return filtered, s.Synthesize(ctx, filtered, s.cfg.DefaultVoice), ""
}

// sampleRate 返回配置的采样率，未配置时使用16kHz
func (s *SpeechService) sampleRate() int {
	if s.cfg.SampleRate > 0 {
		return s.cfg.SampleRate
	}
	return 16000
}

// whisperEngine 基于子进程的Whisper语音识别引擎
type whisperEngine struct {
	command string
	model   string
	timeout time.Duration
}

// Transcribe 调用识别命令，标准输出即识别文本
func (e *whisperEngine) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{}
	if e.model != "" {
		args = append(args, "--model", e.model)
	}
	args = append(args, wavPath)

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("识别命令执行失败: %v: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// kokoroSynthesizer 基于子进程的Kokoro TTS引擎
type kokoroSynthesizer struct {
	path    string
	timeout time.Duration
}

func (k *kokoroSynthesizer) Name() string {
	return "kokoro"
}

// Probe 探测引擎：脚本路径检查文件存在，命令执行--help验证
func (k *kokoroSynthesizer) Probe(ctx context.Context) bool {
	if strings.HasSuffix(k.path, ".py") {
		_, err := os.Stat(k.path)
		return err == nil
	}
	if strings.Contains(k.path, " ") {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(probeCtx, k.path, "--help").Run() == nil
}

// Synthesize 通过临时输出文件调用Kokoro合成
func (k *kokoroSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	outFile, err := os.CreateTemp("", "tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %v", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	args := []string{"--text", text, "--output", outPath, "--voice", voice}
	var cmd *exec.Cmd
	if strings.HasSuffix(k.path, ".py") {
		cmd = exec.CommandContext(ctx, "python3", append([]string{k.path}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, k.path, args...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("Kokoro合成失败: %v: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("Kokoro未生成输出文件: %v", err)
	}
	return data, nil
}

// espeakSynthesizer 系统级espeak降级引擎
type espeakSynthesizer struct {
	timeout time.Duration
}

func (e *espeakSynthesizer) Name() string {
	return "espeak"
}

func (e *espeakSynthesizer) Probe(ctx context.Context) bool {
	_, err := exec.LookPath("espeak")
	return err == nil
}

// Synthesize 调用espeak写出WAV文件
func (e *espeakSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if _, err := exec.LookPath("espeak"); err != nil {
		return nil, errEngineUnavailable
	}

	outFile, err := os.CreateTemp("", "tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %v", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "espeak", "-w", outPath, "-s", "150", "-a", "100", text)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("espeak合成失败: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("espeak未生成输出文件: %v", err)
	}
	return data, nil
}

// generateSilence 生成指定时长的静音WAV数据（16bit单声道）
func generateSilence(duration float64, sampleRate int) []byte {
	samples := int(duration * float64(sampleRate))
	if samples < 0 {
		samples = 0
	}
	dataSize := samples * 2

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                // fmt块大小
	binary.Write(buf, binary.LittleEndian, uint16(1))                 // PCM编码
	binary.Write(buf, binary.LittleEndian, uint16(1))                 // 单声道
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))        // 采样率
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))      // 字节率
	binary.Write(buf, binary.LittleEndian, uint16(2))                 // 块对齐
	binary.Write(buf, binary.LittleEndian, uint16(16))                // 位深
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}
