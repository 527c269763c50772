// Package deepgram implements stt.Source on Deepgram's live streaming API
// with diarization and punctuation enabled.
package deepgram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/Montinou/interview-companion-sub000/logger"
	"github.com/Montinou/interview-companion-sub000/stt"
	"github.com/Montinou/interview-companion-sub000/transcript"
)

// Config holds Deepgram connection settings.
type Config struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Model      string `yaml:"model" mapstructure:"model"`
	Language   string `yaml:"language" mapstructure:"language"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int    `yaml:"channels" mapstructure:"channels"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
}

// Validate validates the config.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("deepgram.api_key is required")
	}
	return nil
}

// Source implements stt.Source using Deepgram's websocket client.
type Source struct {
	cfg     Config
	log     *logger.Logger
	client  *listenClient.WSCallback
	results chan stt.Result
	errs    chan error
	done    chan struct{}
	cancel  context.CancelFunc

	mu     sync.Mutex
	active bool
}

// NewSource creates a Deepgram live source.
func NewSource(cfg Config, log *logger.Logger) *Source {
	cfg.ApplyDefaults()
	return &Source{
		cfg:     cfg,
		log:     log.WithComponent("deepgram"),
		results: make(chan stt.Result, 64),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// callbackHandler embeds the SDK default handler and overrides only the
// message and error paths.
type callbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse) error
}

func (h *callbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	h.onMessage(msg)
	return nil
}

func (h *callbackHandler) Error(resp *msginterfaces.ErrorResponse) error {
	if h.onError != nil {
		return h.onError(resp)
	}
	return h.DefaultCallbackHandler.Error(resp)
}

// Start opens the streaming connection.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("deepgram source already active")
	}
	select {
	case <-s.done:
		return fmt.Errorf("deepgram source is closed")
	default:
	}

	connCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Punctuate:      true,
		Diarize:        true,
		InterimResults: false,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		Channels:       s.cfg.Channels,
	}

	callback := &callbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage:              s.handleMessage,
		onError: func(resp *msginterfaces.ErrorResponse) error {
			// A streamed error is terminal for the session: surface it
			// and let the owner tear down rather than buffer into a void.
			s.log.Error("recognition stream error", logger.Fields("description", resp.Description))
			s.fail(fmt.Errorf("deepgram stream: %s", resp.Description))
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(connCtx, s.cfg.APIKey, nil, tOptions, callback)
	if err != nil {
		cancel()
		return fmt.Errorf("create deepgram client: %w", err)
	}

	s.client = client
	s.active = true
	s.log.Info("recognition stream opened", logger.Fields("model", s.cfg.Model, "language", s.cfg.Language))
	return nil
}

// SendAudio forwards raw audio bytes upstream.
func (s *Source) SendAudio(data []byte) error {
	s.mu.Lock()
	client, active := s.client, s.active
	s.mu.Unlock()

	if !active || client == nil {
		return fmt.Errorf("deepgram source is not active")
	}
	if _, err := client.Write(data); err != nil {
		s.fail(fmt.Errorf("send audio: %w", err))
		return fmt.Errorf("send audio to deepgram: %w", err)
	}
	return nil
}

// Results returns the channel of finalized recognition results. The
// channel is never closed; the consuming pump ends on its own context.
func (s *Source) Results() <-chan stt.Result { return s.results }

// Errors returns the terminal failure channel.
func (s *Source) Errors() <-chan error { return s.errs }

// Close ends the session and releases the connection. Finish makes the
// server flush any trailing transcript, so the callback goroutine may
// still fire after this returns; closing done tells handleMessage to
// drop those late results instead of delivering them.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	s.active = false
	close(s.done)
	if s.client != nil {
		s.client.Finish()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("recognition stream closed")
	return nil
}

func (s *Source) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *Source) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || !msg.IsFinal {
		return
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}
	alt := msg.Channel.Alternatives[0]
	if len(alt.Words) == 0 {
		return
	}

	words := mapWords(alt.Words)
	select {
	case <-s.done:
		// A final transcript flushed by Finish lands here after the
		// session is already gone.
		return
	default:
	}
	select {
	case s.results <- stt.Result{Words: words}:
	default:
		s.log.Warn("results channel full, dropping recognition result",
			logger.Fields("words", len(words)))
	}
}

// mapWords converts SDK words into pipeline recognition words. The
// speaker label is absent until diarization warms up; those words get
// speaker "0" so early utterances still segment.
func mapWords(in []msginterfaces.Word) []transcript.RecognitionWord {
	out := make([]transcript.RecognitionWord, 0, len(in))
	for _, w := range in {
		speaker := 0
		if w.Speaker != nil {
			speaker = *w.Speaker
		}
		out = append(out, transcript.RecognitionWord{
			Text:           w.Word,
			PunctuatedText: w.PunctuatedWord,
			SpeakerID:      strconv.Itoa(speaker),
			Confidence:     w.Confidence,
			Final:          true,
		})
	}
	return out
}
