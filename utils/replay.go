// utils/replay.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var replayClient *s3.Client
var replayBucket string

// InitReplayStore configures the R2 client used for match replay archives.
// The store is optional: callers should check ReplayEnabled before uploading.
func InitReplayStore() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	replayBucket = os.Getenv("R2_REPLAY_BUCKET")
	if accountID == "" || accessKeyID == "" || replayBucket == "" {
		return fmt.Errorf("replay store not configured")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	replayClient = s3.NewFromConfig(cfg)
	return nil
}

func ReplayEnabled() bool {
	return replayClient != nil
}

// UploadReplay stores a finished tournament's replay document under key.
func UploadReplay(key string, data []byte) error {
	if replayClient == nil {
		return fmt.Errorf("replay store not initialized")
	}
	_, err := replayClient.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(replayBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload replay: %w", err)
	}
	return nil
}
