package app

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// Application bundles the configured collaborators and the controller that
// drives them. The TUI and the CLI subcommands both hang off this.
type Application struct {
	Config     Config
	Logger     *zap.Logger
	Store      Store
	Agent      AgentClient
	Controller *Controller
	MockMode   bool
}

// NewApplication wires the real vendor clients, or the mocks when mockMode
// is set (no OpenAI key configured).
func NewApplication(cfg Config, mockMode bool) (*Application, error) {
	root := cfg.StorageRoot
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}

	logger, err := NewLogger(root, cfg.Debug)
	if err != nil {
		// Storage root unusable for logs; run silent rather than fail.
		logger = zap.NewNop()
	}

	store, err := NewFileStore(root)
	if err != nil {
		return nil, err
	}

	var (
		chat   ChatStreamer
		creds  CredentialSource
		dialer ChannelDialer
		agent  AgentClient
	)
	if mockMode {
		chat = &MockChatStreamer{}
		creds = MockCredentialSource{}
		dialer = &MockDialer{}
		agent = &MockAgentClient{PollsUntilDone: 2}
	} else {
		chat = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL, cfg.MaxTokens, cfg.Temperature)
		creds = NewElevenLabsCredentials(cfg.ElevenLabsAPIKey)
		dialer = NewScribeDialer()
		agent = NewHTTPAgentClient(cfg.AgentBaseURL)
	}

	ctrl := NewController(ControllerDeps{
		Store:          store,
		Chat:           chat,
		Credentials:    creds,
		Dialer:         dialer,
		Agent:          agent,
		Logger:         logger,
		AgentServerURL: cfg.AgentBaseURL,
	})

	logger.Info("application initialized",
		zap.Bool("mock", mockMode),
		zap.String("storage_root", root),
		zap.Int("pid", os.Getpid()))

	return &Application{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Agent:      agent,
		Controller: ctrl,
		MockMode:   mockMode,
	}, nil
}

// Close flushes the logger and releases live capture resources.
func (a *Application) Close() {
	a.Controller.Shutdown()
	_ = a.Logger.Sync()
}
