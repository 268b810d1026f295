package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"go.uber.org/zap"

	"redcapdl/internal/blob"
	"redcapdl/internal/table"
)

// Options configures a Publisher.
type Options struct {
	// Formats lists the encodings to produce. CSV is always included.
	Formats []Format
	// Prefix is prepended to every key, e.g. "abd/2026-10".
	Prefix string
	RunID  string
	Logger *zap.Logger
}

// Publisher writes cleaned tables to the blob store, one artifact per format.
type Publisher struct {
	store     blob.Store
	renderers []Renderer
	prefix    string
	runID     string
	log       *zap.Logger
}

// NewPublisher validates the formats and returns a Publisher over store.
func NewPublisher(store blob.Store, opts Options) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("export: nil blob store")
	}
	seen := map[Format]bool{FormatCSV: true}
	renderers := []Renderer{CSVRenderer{}}
	for _, f := range opts.Formats {
		if seen[f] {
			continue
		}
		r, err := RendererFor(f)
		if err != nil {
			return nil, err
		}
		seen[f] = true
		renderers = append(renderers, r)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{store: store, renderers: renderers, prefix: opts.Prefix, runID: opts.RunID, log: log}, nil
}

// Key returns the blob key for a data type, artifact kind and format.
func (p *Publisher) Key(dataType, kind string, f Format) string {
	name := fmt.Sprintf("%s_%s.%s", dataType, kind, f)
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

type rendered struct {
	key     string
	ctype   string
	payload []byte
}

// Publish renders t in every configured format and then stores each payload,
// replacing the artifacts of an earlier run. Nothing is stored if any render
// fails. kind is "variables" or "report".
func (p *Publisher) Publish(ctx context.Context, dataType, kind string, t *table.Table) ([]blob.Info, error) {
	var out []rendered
	for _, r := range p.renderers {
		payload, err := r.Render(t)
		if errors.Is(err, ErrNoColumns) {
			p.log.Warn("skipping artifact with no columns", zap.String("kind", kind), zap.String("format", string(r.Format())))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("render %s %s: %w", kind, r.Format(), err)
		}
		out = append(out, rendered{key: p.Key(dataType, kind, r.Format()), ctype: r.ContentType(), payload: payload})
	}

	meta := map[string]string{
		"rows":      strconv.Itoa(t.Len()),
		"columns":   strconv.Itoa(t.Width()),
		"data_type": dataType,
		"kind":      kind,
	}
	if p.runID != "" {
		meta["run_id"] = p.runID
	}
	infos := make([]blob.Info, 0, len(out))
	for _, a := range out {
		info, err := p.store.Put(ctx, a.key, bytes.NewReader(a.payload), blob.PutOptions{
			ContentType: a.ctype,
			Metadata:    meta,
			Overwrite:   true,
		})
		if err != nil {
			return infos, fmt.Errorf("store %s: %w", a.key, err)
		}
		p.log.Info("artifact written", zap.String("key", info.Key), zap.Int64("bytes", info.Size))
		infos = append(infos, info)
	}
	return infos, nil
}
