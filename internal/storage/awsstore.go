package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// AWSStore implements Store over an S3 bucket and a DynamoDB table.
// Clients are built once from static credentials and reused across requests.
type AWSStore struct {
	s3Client  *s3.Client
	ddbClient *dynamodb.Client
	config    *Config
	logger    *logrus.Logger
}

// NewAWSStore initializes the S3 and DynamoDB clients.
func NewAWSStore(ctx context.Context, config *Config, logger *logrus.Logger) (*AWSStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &AWSStore{
		s3Client:  s3.NewFromConfig(awsCfg),
		ddbClient: dynamodb.NewFromConfig(awsCfg),
		config:    config,
		logger:    logger,
	}, nil
}

// ListObjects enumerates the bucket under the configured prefix, one listing
// page at a time up to ListMaxPages.
func (s *AWSStore) ListObjects(ctx context.Context) ([]models.StoredObject, error) {
	var objects []models.StoredObject
	var token *string
	pages := 0

	for {
		out, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.config.Bucket),
			Prefix:            aws.String(s.config.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", s.config.Bucket, err)
		}

		for _, obj := range out.Contents {
			objects = append(objects, models.StoredObject{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}

		pages++
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		if s.config.ListMaxPages > 0 && pages >= s.config.ListMaxPages {
			s.logger.WithFields(logrus.Fields{
				"bucket": s.config.Bucket,
				"pages":  pages,
			}).Warn("Listing truncated at the configured page cap")
			break
		}
		token = out.NextContinuationToken
	}

	return objects, nil
}

// DeleteObject removes one object by exact key. S3 treats deletion of an
// absent key as success.
func (s *AWSStore) DeleteObject(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// ScanRecords reads the detection table one scan page at a time up to
// ScanMaxPages, unmarshalling each item into an opaque record.
func (s *AWSStore) ScanRecords(ctx context.Context) ([]models.DetectionRecord, error) {
	var records []models.DetectionRecord
	var startKey map[string]ddbtypes.AttributeValue
	pages := 0

	for {
		out, err := s.ddbClient.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.config.Table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", s.config.Table, err)
		}

		var items []map[string]interface{}
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scan items: %w", err)
		}
		for _, item := range items {
			records = append(records, models.DetectionRecord(item))
		}

		pages++
		if out.LastEvaluatedKey == nil {
			break
		}
		if s.config.ScanMaxPages > 0 && pages >= s.config.ScanMaxPages {
			s.logger.WithFields(logrus.Fields{
				"table": s.config.Table,
				"pages": pages,
			}).Warn("Scan truncated at the configured page cap")
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return records, nil
}

// Close is a no-op; the AWS clients hold no long-lived connections that
// need explicit teardown.
func (s *AWSStore) Close(ctx context.Context) error {
	return nil
}
