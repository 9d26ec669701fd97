package dynamodb

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	attrPK            = "PK"
	attrSK            = "SK"
	attrSessionID     = "session_id"
	attrScenarioName  = "scenario_name"
	attrOverallStatus = "overall_status"
	attrS3Key         = "s3_key"
	attrURL           = "url"
	attrSizeBytes     = "size_bytes"
	attrArchivedAt    = "archived_at"
	attrExpiresAt     = "expires_at"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,128}$`)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// SnapshotMetadataRepository индексирует архив snapshot'ов: PK = сессия, SK = время архивации.
// expires_at настраивается как TTL-атрибут таблицы.
type SnapshotMetadataRepository struct {
	client      *dynamodb.Client
	tableName   string
	strongReads bool
}

var _ port.SnapshotMetadataRepository = (*SnapshotMetadataRepository)(nil)

type cursorPayload struct {
	SessionID string                 `json:"session_id"`
	Key       map[string]cursorValue `json:"key"`
}

type cursorValue struct {
	S string `json:"s,omitempty"`
	N string `json:"n,omitempty"`
}

func NewSnapshotMetadataRepository(ctx context.Context, cfg Config) (*SnapshotMetadataRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return &SnapshotMetadataRepository{
		client:      client,
		tableName:   strings.TrimSpace(cfg.TableName),
		strongReads: cfg.StrongReads,
	}, nil
}

func (r *SnapshotMetadataRepository) Put(ctx context.Context, record port.SnapshotMetadata) error {
	item, err := toItem(record)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item failed: %w", err)
	}

	return nil
}

// ListBySession возвращает архив сессии, новые snapshot'ы первыми
func (r *SnapshotMetadataRepository) ListBySession(
	ctx context.Context,
	query port.SnapshotListQuery,
) (port.SnapshotListPage, error) {
	sessionID := strings.TrimSpace(query.SessionID)
	if !sessionIDPattern.MatchString(sessionID) {
		return port.SnapshotListPage{}, fmt.Errorf("invalid session_id")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	keyCondition := "#pk = :pk"
	input := &dynamodb.QueryInput{
		TableName:              &r.tableName,
		KeyConditionExpression: &keyCondition,
		Limit:                  int32Pointer(int32(limit)),
		ScanIndexForward:       boolPointer(false),
		ConsistentRead:         boolPointer(r.strongReads),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: buildPK(sessionID)},
		},
	}

	if strings.TrimSpace(query.Cursor) != "" {
		exclusiveStartKey, err := decodeCursor(query.Cursor, sessionID)
		if err != nil {
			return port.SnapshotListPage{}, err
		}
		input.ExclusiveStartKey = exclusiveStartKey
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.SnapshotListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	items := make([]port.SnapshotMetadata, 0, len(output.Items))
	for _, raw := range output.Items {
		item, err := fromItem(raw)
		if err != nil {
			return port.SnapshotListPage{}, err
		}
		items = append(items, item)
	}

	nextCursor := ""
	if len(output.LastEvaluatedKey) > 0 {
		nextCursor, err = encodeCursor(output.LastEvaluatedKey, sessionID)
		if err != nil {
			return port.SnapshotListPage{}, err
		}
	}

	return port.SnapshotListPage{
		Items:      items,
		NextCursor: nextCursor,
	}, nil
}

func toItem(record port.SnapshotMetadata) (map[string]types.AttributeValue, error) {
	sessionID := strings.TrimSpace(record.SessionID)
	s3Key := strings.TrimSpace(record.S3Key)
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, fmt.Errorf("invalid session_id")
	}
	if s3Key == "" {
		return nil, fmt.Errorf("s3_key is required")
	}

	archivedAt := record.ArchivedAt.UTC()
	if record.ArchivedAt.IsZero() {
		archivedAt = time.Now().UTC()
	}
	archivedAtMS := archivedAt.UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:         &types.AttributeValueMemberS{Value: buildPK(sessionID)},
		attrSK:         &types.AttributeValueMemberS{Value: buildSK(archivedAtMS, s3Key)},
		attrSessionID:  &types.AttributeValueMemberS{Value: sessionID},
		attrS3Key:      &types.AttributeValueMemberS{Value: s3Key},
		attrArchivedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(archivedAtMS, 10)},
	}

	if scenario := strings.TrimSpace(record.ScenarioName); scenario != "" {
		item[attrScenarioName] = &types.AttributeValueMemberS{Value: scenario}
	}
	if status := strings.TrimSpace(record.OverallStatus); status != "" {
		item[attrOverallStatus] = &types.AttributeValueMemberS{Value: status}
	}
	if url := strings.TrimSpace(record.URL); url != "" {
		item[attrURL] = &types.AttributeValueMemberS{Value: url}
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	if !record.ExpiresAt.IsZero() {
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.SnapshotMetadata, error) {
	sessionID, err := attrString(item, attrSessionID)
	if err != nil {
		return port.SnapshotMetadata{}, err
	}
	s3Key, err := attrString(item, attrS3Key)
	if err != nil {
		return port.SnapshotMetadata{}, err
	}
	archivedAtMS, err := attrInt64(item, attrArchivedAt)
	if err != nil {
		return port.SnapshotMetadata{}, err
	}

	record := port.SnapshotMetadata{
		SessionID:     sessionID,
		ScenarioName:  optionalString(item, attrScenarioName),
		OverallStatus: optionalString(item, attrOverallStatus),
		S3Key:         s3Key,
		URL:           optionalString(item, attrURL),
		SizeBytes:     optionalInt64(item, attrSizeBytes),
		ArchivedAt:    time.UnixMilli(archivedAtMS).UTC(),
	}

	if expiresAtSeconds := optionalInt64(item, attrExpiresAt); expiresAtSeconds > 0 {
		record.ExpiresAt = time.Unix(expiresAtSeconds, 0).UTC()
	}

	return record, nil
}

func buildPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func buildSK(archivedAtMS int64, s3Key string) string {
	return fmt.Sprintf("TS#%013d#KEY#%s", archivedAtMS, objectHash(s3Key))
}

func objectHash(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(key map[string]types.AttributeValue, sessionID string) (string, error) {
	values := make(map[string]cursorValue, len(key))
	for attributeName, raw := range key {
		switch value := raw.(type) {
		case *types.AttributeValueMemberS:
			values[attributeName] = cursorValue{S: value.Value}
		case *types.AttributeValueMemberN:
			values[attributeName] = cursorValue{N: value.Value}
		default:
			return "", fmt.Errorf("unsupported cursor attribute type for %s", attributeName)
		}
	}

	serialized, err := json.Marshal(cursorPayload{SessionID: sessionID, Key: values})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(cursor, sessionID string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, port.ErrInvalidCursor
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, port.ErrInvalidCursor
	}

	if payload.SessionID != sessionID {
		return nil, fmt.Errorf("%w: does not match query filters", port.ErrInvalidCursor)
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for attributeName, value := range payload.Key {
		if value.S != "" {
			key[attributeName] = &types.AttributeValueMemberS{Value: value.S}
			continue
		}
		if value.N != "" {
			key[attributeName] = &types.AttributeValueMemberN{Value: value.N}
			continue
		}
		return nil, port.ErrInvalidCursor
	}

	return key, nil
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	raw, ok := item[name]
	if !ok {
		return ""
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	raw, ok := item[name]
	if !ok {
		return 0
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func boolPointer(v bool) *bool {
	return &v
}

func int32Pointer(v int32) *int32 {
	return &v
}
