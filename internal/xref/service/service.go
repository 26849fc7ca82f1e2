package service

import (
	"github.com/Nickin919/WAIGO-sub001/internal/config"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Resolver   *Resolver
	Import     *ImportService
	Project    *ProjectService
	Workflow   *WorkflowService
	FailureLog *FailureLogService
	Archiver   *MinIOArchiver
}

// NewServices 创建服务集合。rdb 为 nil 时不启用提交锁，MinIO 未配置时不归档。
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, progress ProgressPublisher, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	eng := cfg.Engine

	resolver := NewResolver(repos.WagoPart, repos.CrossReference, eng.CatalogScope, eng.ManufacturerMaxLen)
	failures := NewFailureLogService(repos.FailureLog, eng.FailureLogDefaultLimit, eng.FailureLogMaxLimit, logger.Named("failure_log"))
	importSvc := NewImportService(repos, resolver, failures, eng.MaxImportRows, eng.ResolveConcurrency, logger.Named("import"))
	workflowSvc := NewWorkflowService(repos, resolver, failures, eng.ResolveConcurrency, logger.Named("workflow"))

	if progress != nil {
		importSvc.SetProgressPublisher(progress)
		workflowSvc.SetProgressPublisher(progress)
	}
	if rdb != nil {
		workflowSvc.SetSubmitGuard(NewRedisSubmitGuard(rdb), eng.SubmitLockTTL)
	}

	// 初始化MinIO客户端
	var archiver *MinIOArchiver
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio disabled", zap.Error(err))
		} else {
			archiver = NewMinIOArchiver(minioClient, cfg.MinIO.Bucket)
			importSvc.SetArchiver(archiver)
		}
	}

	return &Services{
		Resolver:   resolver,
		Import:     importSvc,
		Project:    NewProjectService(repos.Project),
		Workflow:   workflowSvc,
		FailureLog: failures,
		Archiver:   archiver,
	}
}
