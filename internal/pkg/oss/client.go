package oss

import (
	"fmt"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/fakehunters/detect_go_server/config"
)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// UploadVideoFromFile 归档可播放的视频文件，直接从磁盘流式上传
func (c *Client) UploadVideoFromFile(analysisID int64, localPath string) (string, error) {
	objectKey := fmt.Sprintf("videos/%d/%d.mp4", analysisID, time.Now().Unix())

	err := c.bucket.PutObjectFromFile(objectKey, localPath, oss.ContentType("video/mp4"))
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	return c.GetURL(objectKey), nil
}

// GetURL 获取文件访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// GetSignedURL 生成带签名的临时访问URL（默认1小时有效）
func (c *Client) GetSignedURL(objectKey string, expireSeconds ...int64) (string, error) {
	expire := int64(3600) // 默认1小时
	if len(expireSeconds) > 0 && expireSeconds[0] > 0 {
		expire = expireSeconds[0]
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expire)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return signedURL, nil
}

// ExtractObjectKey 从 URL 中提取 object key
func (c *Client) ExtractObjectKey(url string) string {
	// 处理 CDN 域名
	if c.cdnDomain != "" {
		prefix := fmt.Sprintf("https://%s/", c.cdnDomain)
		if len(url) > len(prefix) && url[:len(prefix)] == prefix {
			return url[len(prefix):]
		}
	}

	// 标准 OSS URL: https://bucket-name.endpoint/path/to/object
	prefix := fmt.Sprintf("https://%s.%s/", c.bucketName, c.client.Config.Endpoint)
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}

	return ""
}
