package layer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"zipdive/internal/archive"
)

// Options configures an Engine.
type Options struct {
	Extensions []string
	Extractor  archive.Extractor
	// MaxConcurrent caps extractions running at once within a layer. Zero means unbounded.
	MaxConcurrent int
}

// Engine runs layers: scan, fan out one extraction per archive, report.
// It never mutates a Layer; callers feed the emitted events into Layer.Apply.
type Engine struct {
	scanner       *archive.Scanner
	worker        *archive.Worker
	maxConcurrent int
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		scanner:       archive.NewScanner(opts.Extensions),
		worker:        archive.NewWorker(opts.Extractor),
		maxConcurrent: opts.MaxConcurrent,
	}
}

// Run processes one layer and blocks until every extraction has reported.
// emit is called from several goroutines; Extracted events may arrive in any
// order but always after Searching and before LayerFinished.
func (e *Engine) Run(ctx context.Context, depth int, inputDir, outputDir, password string, emit func(Event)) {
	archives, err := e.scanner.Scan(inputDir)
	if err != nil {
		log.Error().Int("layer", depth).Str("dir", inputDir).Err(err).Msg("scan failed")
		emit(failedEvent(depth, err))
		return
	}
	if len(archives) == 0 {
		log.Info().Int("layer", depth).Str("dir", inputDir).Msg("no archives found")
		emit(emptyArchivesEvent(depth))
		return
	}
	log.Info().Int("layer", depth).Int("archives", len(archives)).Str("dir", inputDir).Msg("archives found")
	emit(searchingEvent(depth, archives))

	var slots chan struct{}
	if e.maxConcurrent > 0 {
		slots = make(chan struct{}, e.maxConcurrent)
	}

	var wg sync.WaitGroup
	for index, archivePath := range archives {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if slots != nil {
				slots <- struct{}{}
				defer func() { <-slots }()
			}
			destination := archive.DestinationDir(inputDir, archivePath, outputDir)
			err := e.worker.Extract(ctx, archivePath, destination, password)
			if err != nil {
				log.Warn().Int("layer", depth).Str("archive", archivePath).Err(err).Msg("extraction failed")
			} else {
				log.Debug().Int("layer", depth).Str("archive", archivePath).Str("dest", destination).Msg("extracted")
			}
			emit(extractedEvent(depth, index, err))
		}()
	}
	wg.Wait()

	emit(layerFinishedEvent(depth))
}
