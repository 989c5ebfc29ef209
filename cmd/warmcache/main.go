// warmcache 预先向量化在招职位文本并写入 Redis 向量缓存，
// 避免服务冷启动后首批推荐请求集中调用向量化服务。
package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"job-recommender/internal/config"
	"job-recommender/internal/logger"
	"job-recommender/internal/parser"
	"job-recommender/internal/ratelimit"
	"job-recommender/internal/recommend"
	"job-recommender/internal/similarity"
	"job-recommender/internal/storage"
	"job-recommender/internal/types"
)

type vectorWarmer interface {
	Warm(ctx context.Context, texts []string) error
}

func main() {
	var (
		configPath  string
		batchSize   int
		concurrency int
		jobLimit    int
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.IntVar(&batchSize, "batch-size", 20, "Texts per embedding request")
	pflag.IntVar(&concurrency, "concurrency", 5, "Concurrent embedding requests")
	pflag.IntVar(&jobLimit, "limit", 1000, "Maximum active jobs to warm")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	if _, err := logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, TimeFormat: cfg.Logger.TimeFormat}); err != nil {
		logger.Fatal().Err(err).Msg("初始化日志失败")
	}
	if cfg.Performance.CacheTTL() <= 0 {
		logger.Fatal().Msg("cache_ttl_seconds 为0，向量缓存未启用")
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if storageManager.Redis == nil {
		logger.Fatal().Msg("Redis不可用，无法写入向量缓存")
	}

	httpEmbedder, err := parser.NewHTTPEmbedder(cfg.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化向量化客户端失败")
	}
	limiter := ratelimit.NewLimiter(cfg.Embedding.RequestsPerSec, cfg.Embedding.Burst).
		WithRetryPolicy(time.Second, cfg.Embedding.MaxRetries)
	backend := similarity.NewEmbeddingBackend(
		ratelimit.NewRateLimitedEmbedder(httpEmbedder, limiter, 5, 30*time.Second),
		similarity.WithModel(cfg.Similarity.ModelName),
		similarity.WithVectorCache(storageManager.Redis, cfg.Performance.CacheTTL()),
	)
	if err := backend.Probe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("向量化服务不可用")
	}

	jobs, err := storageManager.Repository.GetActiveJobs(ctx, jobLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("查询在招职位失败")
	}
	logger.Info().Int("count", len(jobs)).Msg("开始预热职位向量")

	start := time.Now()
	warmed, err := warmJobVectors(ctx, backend, jobs, batchSize, concurrency)
	if err != nil {
		logger.Error().Err(err).Int("count", warmed).Msg("部分批次预热失败")
	}
	logger.Info().Int("count", warmed).Dur("elapsed", time.Since(start)).Msg("职位向量预热完成")
}

// warmJobVectors 按批次并发预热去重后的职位文本，返回成功预热的文本数
// 单个批次失败不影响其他批次，所有失败合并返回
func warmJobVectors(ctx context.Context, warmer vectorWarmer, jobs []types.JobRecord, batchSize, concurrency int) (int, error) {
	if batchSize <= 0 {
		batchSize = 20
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	texts := jobTexts(jobs)
	results := make([]error, 0, len(texts)/batchSize+1)
	var batches [][]string
	for i := 0; i < len(texts); i += batchSize {
		batches = append(batches, texts[i:min(i+batchSize, len(texts))])
		results = append(results, nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			if err := warmer.Warm(gctx, batch); err != nil {
				logger.Warn().Err(err).Int("batch", i).Int("count", len(batch)).Msg("批次预热失败")
				results[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	warmed := 0
	var errs []error
	for i, err := range results {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		warmed += len(batches[i])
	}
	return warmed, errors.Join(errs...)
}

func jobTexts(jobs []types.JobRecord) []string {
	seen := make(map[string]struct{}, len(jobs))
	texts := make([]string, 0, len(jobs))
	for _, job := range jobs {
		profile := recommend.BuildJobProfile(job)
		text := recommend.JobText(&profile)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		texts = append(texts, text)
	}
	return texts
}
