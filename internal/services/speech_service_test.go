package services

import (
	"context"
	"errors"
	"testing"

	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSynthesizer 可编程的合成引擎替身
type fakeSynthesizer struct {
	name  string
	data  []byte
	err   error
	calls int
}

func (f *fakeSynthesizer) Name() string                 { return f.name }
func (f *fakeSynthesizer) Probe(ctx context.Context) bool { return true }
func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

// fakeASR 可编程的识别引擎替身
type fakeASR struct {
	text  string
	err   error
	calls int
}

func (f *fakeASR) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f.calls++
	return f.text, f.err
}

// newTestSpeechService 构造注入替身引擎的语音服务，跳过子进程探测
func newTestSpeechService(asr asrEngine, chain ...synthesizer) *SpeechService {
	return &SpeechService{
		cfg: config.SpeechConfig{
			Enabled:      true,
			DefaultVoice: "default",
			SampleRate:   16000,
		},
		asr:         asr,
		chain:       chain,
		initialized: true,
	}
}

// silenceSize 计算指定时长静音WAV的总字节数（44字节头 + 16bit采样）
func silenceSize(duration float64, sampleRate int) int {
	return 44 + int(duration*float64(sampleRate))*2
}

func TestSpeechService_DetectModeSwitch(t *testing.T) {
	svc := NewSpeechService(config.SpeechConfig{})

	tests := []struct {
		name string
		text string
		want models.SessionMode
	}{
		{"切到聊天", "switch to chat", models.ModeChat},
		{"短语嵌在句子里", "could you please go to chat now", models.ModeChat},
		{"大小写不敏感", "Switch To TEXT mode", models.ModeChat},
		{"停用语音", "stop voice please", models.ModeChat},
		{"切到语音", "switch to voice", models.ModeVoice},
		{"启用语音", "please enable voice", models.ModeVoice},
		{"普通消息不触发", "hello there, how are you", ""},
		{"提到单词chat不触发", "let's have a chat about dogs", ""},
		{"空文本不触发", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.DetectModeSwitch(tt.text))
		})
	}
}

func TestSpeechService_SynthesizeEmptyText(t *testing.T) {
	engine := &fakeSynthesizer{name: "fake", data: []byte("wav")}
	svc := newTestSpeechService(&fakeASR{}, engine)

	// 空文本直接返回空缓冲区，不触碰引擎
	got := svc.Synthesize(context.Background(), "   ", "default")
	assert.Empty(t, got)
	assert.Equal(t, 0, engine.calls)
}

func TestSpeechService_SynthesizeFallbackChain(t *testing.T) {
	first := &fakeSynthesizer{name: "primary", err: errors.New("合成崩溃")}
	second := &fakeSynthesizer{name: "fallback", data: []byte("fallback-wav")}
	svc := newTestSpeechService(&fakeASR{}, first, second)

	got := svc.Synthesize(context.Background(), "hello world", "default")

	assert.Equal(t, []byte("fallback-wav"), got)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestSpeechService_SynthesizeAllEnginesErrored(t *testing.T) {
	first := &fakeSynthesizer{name: "primary", err: errors.New("合成崩溃")}
	second := &fakeSynthesizer{name: "fallback", err: errors.New("也崩溃了")}
	svc := newTestSpeechService(&fakeASR{}, first, second)

	// 引擎调用出错时返回固定1秒静音
	got := svc.Synthesize(context.Background(), "hello world", "default")
	assert.Len(t, got, silenceSize(1.0, 16000))
	assert.Equal(t, "RIFF", string(got[:4]))
}

func TestSpeechService_SynthesizeAllEnginesUnavailable(t *testing.T) {
	first := &fakeSynthesizer{name: "primary", err: errEngineUnavailable}
	second := &fakeSynthesizer{name: "fallback", err: errEngineUnavailable}
	svc := newTestSpeechService(&fakeASR{}, first, second)

	// 引擎不可用时静音时长按文本长度估算（0.1秒/字符）
	text := "hi there"
	got := svc.Synthesize(context.Background(), text, "default")
	assert.Len(t, got, silenceSize(0.1*float64(len(text)), 16000))
}

func TestGenerateSilence(t *testing.T) {
	data := generateSilence(0.5, 16000)

	require.Len(t, data, 44+8000*2)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "data", string(data[36:40]))

	// 负时长不崩溃
	assert.Len(t, generateSilence(-1, 16000), 44)
}

func TestSpeechService_SpeechToSpeech(t *testing.T) {
	generateCalls := 0
	okGenerate := func(ctx context.Context, prompt string) (string, error) {
		generateCalls++
		return "hi there friend", nil
	}

	t.Run("识别为空时返回短静音", func(t *testing.T) {
		generateCalls = 0
		svc := newTestSpeechService(&fakeASR{text: "  "}, &fakeSynthesizer{name: "fake", data: []byte("wav")})

		text, audio, switched := svc.SpeechToSpeech(context.Background(), []byte("audio"), okGenerate, newDeterministicPersona())

		assert.Empty(t, text)
		assert.Len(t, audio, silenceSize(0.5, 16000))
		assert.Equal(t, models.SessionMode(""), switched)
		assert.Equal(t, 0, generateCalls)
	})

	t.Run("模式切换指令不进入模型", func(t *testing.T) {
		generateCalls = 0
		svc := newTestSpeechService(&fakeASR{text: "switch to chat"}, &fakeSynthesizer{name: "fake", data: []byte("wav")})

		text, audio, switched := svc.SpeechToSpeech(context.Background(), []byte("audio"), okGenerate, newDeterministicPersona())

		assert.Equal(t, switchToChatMessage, text)
		assert.Equal(t, []byte("wav"), audio)
		assert.Equal(t, models.ModeChat, switched)
		assert.Equal(t, 0, generateCalls)
	})

	t.Run("语音模式重复切换返回已激活提示", func(t *testing.T) {
		svc := newTestSpeechService(&fakeASR{text: "enable voice"}, &fakeSynthesizer{name: "fake", data: []byte("wav")})

		text, _, switched := svc.SpeechToSpeech(context.Background(), []byte("audio"), okGenerate, newDeterministicPersona())

		assert.Equal(t, voiceAlreadyActive, text)
		assert.Equal(t, models.ModeVoice, switched)
	})

	t.Run("识别失败转为致歉音频", func(t *testing.T) {
		svc := newTestSpeechService(&fakeASR{err: errors.New("识别崩溃")}, &fakeSynthesizer{name: "fake", data: []byte("wav")})

		text, audio, switched := svc.SpeechToSpeech(context.Background(), []byte("audio"), okGenerate, newDeterministicPersona())

		assert.Equal(t, speechApologyMessage, text)
		assert.NotEmpty(t, audio)
		assert.Equal(t, models.SessionMode(""), switched)
	})

	t.Run("生成失败转为致歉音频", func(t *testing.T) {
		svc := newTestSpeechService(&fakeASR{text: "tell me something"}, &fakeSynthesizer{name: "fake", data: []byte("wav")})
		failGenerate := func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("模型超时")
		}

		text, audio, _ := svc.SpeechToSpeech(context.Background(), []byte("audio"), failGenerate, newDeterministicPersona())

		assert.Equal(t, speechApologyMessage, text)
		assert.NotEmpty(t, audio)
	})

	t.Run("正常流程经过人格过滤", func(t *testing.T) {
		generateCalls = 0
		svc := newTestSpeechService(&fakeASR{text: "how are you doing"}, &fakeSynthesizer{name: "fake", data: []byte("wav")})

		text, audio, switched := svc.SpeechToSpeech(context.Background(), []byte("audio"), okGenerate, newDeterministicPersona())

		// 确定性随机源下短回复只做格式清理
		assert.Equal(t, "Hi there friend.", text)
		assert.Equal(t, []byte("wav"), audio)
		assert.Equal(t, models.SessionMode(""), switched)
		assert.Equal(t, 1, generateCalls)
	})
}
