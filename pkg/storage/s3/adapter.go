package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
)

// DefaultPrefix 块在桶内的根目录
const DefaultPrefix = "blocks"

// Adapter 把块存放在 S3 兼容的对象存储中 (AWS / MinIO)
type Adapter struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config 用于初始化 Adapter，Endpoint 为空时使用 AWS 默认地址
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewAdapter 创建客户端并确保桶存在
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	// 1. 基础配置：Region + 静态凭证 (为空时走默认凭证链)
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. S3 专属配置：自定义 Endpoint + Path Style (MinIO 需要)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	a := &Adapter{client: client, bucket: cfg.Bucket, prefix: prefix}

	// 3. 自动创建 Bucket
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
			// 并发创建或权限不足时继续，真正的错误会在 Put 时暴露
			slog.Warn("failed to ensure bucket exists", "bucket", cfg.Bucket, "error", err)
		}
	}
	return a, nil
}

// objectKey "<prefix>/<倒数第 2、3 个字符>/<key>"，与磁盘布局一致
func (s *Adapter) objectKey(c cid.Cid) string {
	key := storage.Key(c)
	if len(key) < 3 {
		return path.Join(s.prefix, key)
	}
	return path.Join(s.prefix, key[len(key)-3:len(key)-1], key)
}

// Put 写入块，已存在的对象不会被覆盖
func (s *Adapter) Put(ctx context.Context, blk core.Block) error {
	// 1. Head 比 Put 便宜，先查
	exists, err := s.Has(ctx, blk.Cid())
	if err != nil {
		return fmt.Errorf("s3 put existence check failed: %w", err)
	}
	if exists {
		return nil
	}

	// 2. 上传，CID 记在对象元数据里方便排查
	data := blk.RawData()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(blk.Cid())),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(blk.Cid())),
		Metadata:      map[string]string{"cid": blk.Cid().String()},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s failed: %w", blk.Cid(), err)
	}
	return nil
}

// Get 返回块内容，调用方负责关闭
func (s *Adapter) Get(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(c)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, c)
		}
		return nil, fmt.Errorf("s3 get %s failed: %w", c, err)
	}
	return resp.Body, nil
}

// Has 通过 HeadObject 判断存在性
func (s *Adapter) Has(ctx context.Context, c cid.Cid) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(c)),
	})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// isNotFound HeadObject 没有响应体，部分实现只给出 404 状态码
func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// contentType 按 codec 标记对象类型，方便在控制台里辨认
func contentType(c cid.Cid) string {
	switch c.Type() {
	case cid.DagCBOR:
		return "application/vnd.ipld.dag-cbor"
	case cid.DagProtobuf:
		return "application/vnd.ipld.dag-pb"
	default:
		return "application/octet-stream"
	}
}
