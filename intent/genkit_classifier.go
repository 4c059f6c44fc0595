package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
)

type (
	labelScore struct {
		Label string  `json:"label" jsonschema:"description=One of the candidate labels"`
		Score float64 `json:"score" jsonschema:"minimum=0,maximum=1,description=Confidence that the message expresses this label"`
	}

	classification struct {
		Scores []labelScore `json:"scores" jsonschema:"description=One entry per candidate label"`
	}

	// GenkitClassifier asks a Genkit model to score every candidate label.
	GenkitClassifier struct {
		g      *genkit.Genkit
		model  string
		schema string
		cache  *ristretto.Cache
		logger *slog.Logger
	}
)

const classifierSystemPrompt = `You are a zero-shot intent classifier. You never answer the message itself.
Score how well the user's message matches each candidate label. Scores lie between 0 and 1.
Respond with a single JSON object that matches this schema:
%s`

// NewGenkitClassifier classifies with the fully qualified genkit model name.
func NewGenkitClassifier(g *genkit.Genkit, model string, logger *slog.Logger) (*GenkitClassifier, error) {
	if logger == nil {
		logger = mylog.Discard()
	}

	schema, err := json.Marshal(jsonschema.Reflect(&classification{}))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build classification schema")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 12,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create verdict cache")
	}

	return &GenkitClassifier{
		g:      g,
		model:  model,
		schema: string(schema),
		cache:  cache,
		logger: logger,
	}, nil
}

func (c *GenkitClassifier) Classify(ctx context.Context, text string, labels []Label) ([]Verdict, error) {
	if len(labels) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "no labels to classify against")
	}

	key := cacheKey(text, labels)
	if v, ok := c.cache.Get(key); ok {
		return append([]Verdict(nil), v.([]Verdict)...), nil
	}

	prompt := fmt.Sprintf("Candidate labels: %s\n\nMessage: %q",
		strings.Join(lo.Map(labels, func(l Label, _ int) string { return string(l) }), ", "),
		strings.TrimSpace(text),
	)
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithSystem(fmt.Sprintf(classifierSystemPrompt, c.schema)),
		ai.WithPrompt(prompt),
		ai.WithOutputFormat(ai.OutputFormatJSON),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0.01}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to classify message")
	}

	var out classification
	if err := json.Unmarshal([]byte(resp.Text()), &out); err != nil {
		return nil, errors.Wrapf(err, "malformed classification %q", resp.Text())
	}

	verdicts, err := normalize(out.Scores, labels)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, verdicts, 1)
	c.cache.Wait()
	c.logger.Debug("classified message", slog.String("label", string(verdicts[0].Label)), slog.Float64("score", verdicts[0].Score))
	return append([]Verdict(nil), verdicts...), nil
}

// Close releases the verdict cache.
func (c *GenkitClassifier) Close() {
	c.cache.Close()
}

// normalize keeps the candidate labels only, clamps every score into [0,1]
// and rescales them to sum to 1, best first.
func normalize(scores []labelScore, labels []Label) ([]Verdict, error) {
	byLabel := make(map[Label]float64, len(labels))
	for _, s := range scores {
		l := Label(strings.ToLower(strings.TrimSpace(s.Label)))
		if !lo.Contains(labels, l) {
			continue
		}
		byLabel[l] += lo.Clamp(s.Score, 0, 1)
	}

	var total float64
	for _, v := range byLabel {
		total += v
	}
	if total <= 0 {
		return nil, errors.New("classification has no scores for the candidate labels")
	}

	verdicts := make([]Verdict, 0, len(labels))
	for _, l := range labels {
		verdicts = append(verdicts, Verdict{Label: l, Score: byLabel[l] / total})
	}
	sort.SliceStable(verdicts, func(i, j int) bool {
		return verdicts[i].Score > verdicts[j].Score
	})
	return verdicts, nil
}

func cacheKey(text string, labels []Label) string {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(string(l))
		sb.WriteByte(',')
	}
	sb.WriteByte(0)
	sb.WriteString(strings.ToLower(strings.Join(strings.Fields(text), " ")))
	return sb.String()
}
