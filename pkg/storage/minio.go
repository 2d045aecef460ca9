// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"pdf-rag-go/internal/config"
	"pdf-rag-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo 描述对象存储中的一个对象。
type ObjectInfo struct {
	Name string
	Size int64
}

// Client 封装了 MinIO 客户端与 bucket 信息。
type Client struct {
	mc  *minio.Client
	cfg config.MinIOConfig
}

// New 初始化 MinIO 客户端并确保指定的存储桶存在。
func New(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	ctx := context.Background()
	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}

	log.Info("MinIO 客户端初始化成功")
	return &Client{mc: mc, cfg: cfg}, nil
}

// ListObjects 枚举指定前缀下的所有对象。
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range c.mc.ListObjects(ctx, c.cfg.BucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("枚举对象失败: %w", obj.Err)
		}
		objects = append(objects, ObjectInfo{Name: obj.Key, Size: obj.Size})
	}
	return objects, nil
}

// ListPDFs 枚举指定前缀下扩展名为 .pdf 的对象。
func (c *Client) ListPDFs(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects, err := c.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var pdfs []ObjectInfo
	for _, obj := range objects {
		if strings.HasSuffix(strings.ToLower(obj.Name), ".pdf") {
			pdfs = append(pdfs, obj)
		}
	}
	return pdfs, nil
}

// ReadObject 将整个对象读入内存。
func (c *Client) ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	object, err := c.mc.GetObject(ctx, c.cfg.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 下载对象失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(object); err != nil {
		return nil, fmt.Errorf("读取 MinIO 对象流失败: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectURL 根据对象名与页码拼出可直接访问的文档链接。
// URL 始终由 (对象名, 页码, 固定基础路径) 重新计算得到，不单独持久化，
// 基础路径变更后旧链接不会残留。page <= 0 时不带页锚点。
func (c *Client) ObjectURL(objectName string, page int) string {
	endpoint := c.cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	scheme := "http"
	if c.cfg.UseSSL {
		scheme = "https"
	}
	// 对对象名逐段做 URL 编码，保留路径分隔符，避免空格等字符破坏链接
	segments := strings.Split(objectName, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	encoded := strings.Join(segments, "/")
	base := fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, c.cfg.BucketName, encoded)
	if page > 0 {
		return fmt.Sprintf("%s#page=%d", base, page)
	}
	return base
}
