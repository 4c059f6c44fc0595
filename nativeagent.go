package nativeagent

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/command"
	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/history"
	"github.com/habiliai/nativeagent/hosted"
	igenkit "github.com/habiliai/nativeagent/internal/genkit"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/intent"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/habiliai/nativeagent/memory"
	"github.com/habiliai/nativeagent/pipeline"
	"github.com/habiliai/nativeagent/retrieval"
	"github.com/habiliai/nativeagent/session"
	"github.com/jcooky/go-din"
	"golang.org/x/sync/errgroup"
)

type (
	Runtime struct {
		container     *din.Container
		ownsContainer bool
		logger        *slog.Logger
		store         memory.Store
		pipeline      *pipeline.Orchestrator
		session       *session.Session
		lazy          *intent.Lazy

		ctx    context.Context
		cancel context.CancelFunc
	}

	Option func(*options)

	options struct {
		container  *din.Container
		logger     *slog.Logger
		agent      *entity.Agent
		store      memory.Store
		classifier intent.Classifier
		generator  retrieval.Generator
		offline    bool
	}
)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithContainer resolves configuration and components from c instead of a
// fresh production container. The caller keeps ownership of c.
func WithContainer(c *din.Container) Option {
	return func(o *options) {
		o.container = c
	}
}

// WithAgent loads agent into the session on start.
func WithAgent(agent entity.Agent) Option {
	return func(o *options) {
		o.agent = &agent
	}
}

func WithMemoryStore(store memory.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithClassifier replaces the Ollama-backed intent classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithGenerator answers every retrieval request with g regardless of the
// configured local server.
func WithGenerator(g retrieval.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// WithOffline keeps the session on the native pathway.
func WithOffline(offline bool) Option {
	return func(o *options) {
		o.offline = offline
	}
}

func NewRuntime(ctx context.Context, optionFuncs ...Option) (_ *Runtime, err error) {
	o := &options{}
	for _, f := range optionFuncs {
		f(o)
	}

	r := &Runtime{container: o.container}
	if r.container == nil {
		r.container = din.NewContainer(ctx, din.EnvProd)
		r.ownsContainer = true
	}
	c := r.container
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	r.logger = o.logger
	if r.logger == nil {
		r.logger = din.MustGet[*slog.Logger](c, mylog.Key)
	}

	localConf, err := din.GetT[*config.LocalConfig](c)
	if err != nil {
		return nil, err
	}
	hostedConf, err := din.GetT[*config.HostedConfig](c)
	if err != nil {
		return nil, err
	}
	sessionConf, err := din.GetT[*config.SessionConfig](c)
	if err != nil {
		return nil, err
	}

	r.store = o.store
	if r.store == nil {
		if r.store, err = din.GetT[memory.Store](c); err != nil {
			return nil, errors.Wrapf(err, "failed to open memory store")
		}
	}

	client, err := din.GetT[*localllm.Client](c)
	if err != nil {
		return nil, err
	}
	g, err := din.Get[*genkit.Genkit](c, igenkit.Key)
	if err != nil {
		return nil, err
	}

	classifier := o.classifier
	if classifier == nil {
		if model := localConf.ClassifierModel(); model != "" {
			r.lazy = intent.NewLazy(intent.OllamaLoader(g, client, model, r.logger), r.logger)
			classifier = r.lazy
		} else {
			r.logger.Info("no intent model configured, intent tier disabled")
			classifier = intent.Unavailable{}
		}
	}

	dial := retrieval.OllamaDialer(localllm.Config{RequestTimeout: localConf.RequestTimeout}, r.logger)
	if o.generator != nil {
		dial = retrieval.Static(o.generator)
	}

	r.pipeline = pipeline.New(r.logger,
		command.NewHandler(r.store, r.logger),
		intent.NewHandler(classifier, r.store, sessionConf.IntentConfidence, r.logger),
		retrieval.NewHandler(r.store, dial, retrieval.Options{
			TopK:          sessionConf.RetrievalTopK,
			Threshold:     sessionConf.RetrievalThreshold,
			HistoryWindow: sessionConf.HistoryWindow,
		}, r.logger),
	)

	sessionOpts := []session.Option{
		session.WithLogger(r.logger),
		session.WithConfig(*sessionConf),
		session.WithLocal(*localConf),
		session.WithLocalConnectedHook(func(context.Context, session.LocalState) {
			if r.lazy != nil {
				r.lazy.Start(r.ctx)
			}
		}),
	}

	offline := o.offline || hostedConf.Offline
	var hostedClient *hosted.Client
	if hostedConf.APIKey != "" {
		if hostedClient, err = din.GetT[*hosted.Client](c); err != nil {
			r.logger.Warn("hosted model unavailable", slog.Any("error", err))
			hostedClient = nil
		}
	}
	if hostedClient != nil {
		sessionOpts = append(sessionOpts, session.WithHosted(hostedClient))
	}
	switch {
	case hostedClient != nil && !offline:
		sessionOpts = append(sessionOpts, session.WithDistiller(hostedClient))
	case localConf.Model != "":
		sessionOpts = append(sessionOpts, session.WithDistiller(retrieval.NewLocalDistiller(g, client, localConf.Model)))
	}

	if h, err := din.GetT[*history.Store](c); err != nil {
		r.logger.Warn("agent history unavailable", slog.Any("error", err))
	} else {
		sessionOpts = append(sessionOpts, session.WithHistory(h))
	}

	r.session = session.New(r.store, r.pipeline, sessionOpts...)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.session.Init(egCtx, offline)
	})
	if o.agent != nil {
		agent := *o.agent
		eg.Go(func() error {
			return r.session.LoadAgent(egCtx, agent)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// ProcessMessage runs text through the tiers for the loaded agent without
// touching the session transcript.
func (r *Runtime) ProcessMessage(ctx context.Context, text string, history []entity.ChatMessage, local pipeline.LocalOptions) (*pipeline.Result, error) {
	agent, loaded := r.session.Agent()
	if !loaded {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "no agent loaded")
	}
	return r.pipeline.ProcessMessage(ctx, &pipeline.Request{
		Text:    text,
		Agent:   agent,
		History: history,
		Local:   local,
	}), nil
}

func (r *Runtime) Session() *session.Session {
	return r.session
}

func (r *Runtime) Store() memory.Store {
	return r.store
}

func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

func (r *Runtime) Close() {
	r.cancel()
	if r.session != nil {
		r.session.Close()
	}
	if r.lazy != nil {
		r.lazy.Close()
	}
	if r.ownsContainer {
		r.container.Close()
	}
}
