package genkit

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/internal/genkit/plugins/ollama"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/jcooky/go-din"
	"github.com/pkg/errors"
)

var (
	Key = din.NewRandomName()
)

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		localConf := din.MustGetT[*config.LocalConfig](c)
		logConf := din.MustGetT[*config.LogConfig](c)
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		client := din.MustGetT[*localllm.Client](c)

		models := []string{localConf.Model}
		if m := localConf.ClassifierModel(); m != localConf.Model {
			models = append(models, m)
		}

		opts := []genkit.GenkitOption{
			genkit.WithPlugins(&ollama.Plugin{
				Client: client,
				Models: models,
			}),
		}
		if localConf.Model != "" {
			opts = append(opts, genkit.WithDefaultModel(ollama.ModelName(localConf.Model)))
		}

		g, err := genkit.Init(c, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to init genkit")
		}

		genkit.RegisterSpanProcessor(g,
			&loggingSpanProcessor{
				verbose: logConf.TraceVerbose,
				logger:  logger,
			},
		)

		return g, nil
	})
}
