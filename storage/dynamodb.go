package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"pet-sync/config"
	"pet-sync/models"
)

// maxBatchWrite ist das DynamoDB-Limit für BatchWriteItem.
const maxBatchWrite = 25

// DynamoAPI ist der Teil des DynamoDB-Clients, den der Store benutzt.
type DynamoAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore speichert Pets in DynamoDB. Die Partition einer Quelle liegt im Index SyncIndex (Schlüssel "source"),
// der Spezies-Filter nutzt SpeciesIndex (Schlüssel "species").
type DynamoStore struct {
	Client       DynamoAPI
	Logger       *zap.Logger
	Table        string
	SyncIndex    string
	SpeciesIndex string
	LeaseTable   string
	PageSize     int32

	// MaxRetries begrenzt die Wiederholungen für UnprocessedItems.
	MaxRetries int
	Backoff    time.Duration
	now        func() time.Time
}

// NewDynamoClient erstellt einen DynamoDB-Client. AWS_ENDPOINT überschreibt den Endpoint (z.B. DynamoDB Local).
func NewDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	}), nil
}

// NewDynamoStore erstellt einen DynamoStore mit den Tabellennamen aus der Konfiguration.
func NewDynamoStore(client DynamoAPI, cfg *config.Config, logger *zap.Logger) *DynamoStore {
	return &DynamoStore{
		Client:       client,
		Logger:       logger.With(zap.String("store", "dynamodb")),
		Table:        cfg.PetsTable,
		SyncIndex:    cfg.SyncIndex,
		SpeciesIndex: cfg.SpeciesIndex,
		LeaseTable:   cfg.LeaseTable,
		PageSize:     cfg.StorePageSize,
		MaxRetries:   5,
		Backoff:      100 * time.Millisecond,
		now:          time.Now,
	}
}

func (s *DynamoStore) QueryPartition(ctx context.Context, source models.Source, cursor string) (Page, error) {
	// "source" ist in DynamoDB ein reserviertes Wort
	in := &dynamodb.QueryInput{
		TableName:                aws.String(s.Table),
		IndexName:                aws.String(s.SyncIndex),
		KeyConditionExpression:   aws.String("#source = :source"),
		ExpressionAttributeNames: map[string]string{"#source": "source"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":source": &types.AttributeValueMemberS{Value: string(source)},
		},
	}
	return s.query(ctx, in, cursor)
}

func (s *DynamoStore) Scan(ctx context.Context, filter Filter, cursor string) (Page, error) {
	if filter.Species != "" {
		in := &dynamodb.QueryInput{
			TableName:              aws.String(s.Table),
			IndexName:              aws.String(s.SpeciesIndex),
			KeyConditionExpression: aws.String("species = :species"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":species": &types.AttributeValueMemberS{Value: filter.Species},
			},
		}
		return s.query(ctx, in, cursor)
	}

	start, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	in := &dynamodb.ScanInput{
		TableName:         aws.String(s.Table),
		ExclusiveStartKey: start,
	}
	if s.PageSize > 0 {
		in.Limit = aws.Int32(s.PageSize)
	}
	out, err := s.Client.Scan(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("scan %s: %w", s.Table, err)
	}
	return toPage(out.Items, out.LastEvaluatedKey)
}

func (s *DynamoStore) query(ctx context.Context, in *dynamodb.QueryInput, cursor string) (Page, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	in.ExclusiveStartKey = start
	if s.PageSize > 0 {
		in.Limit = aws.Int32(s.PageSize)
	}
	out, err := s.Client.Query(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("query %s/%s: %w", s.Table, aws.ToString(in.IndexName), err)
	}
	return toPage(out.Items, out.LastEvaluatedKey)
}

func (s *DynamoStore) Get(ctx context.Context, id string) (models.Pet, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return models.Pet{}, fmt.Errorf("get %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return models.Pet{}, ErrNotFound
	}
	var pet models.Pet
	if err := attributevalue.UnmarshalMap(out.Item, &pet); err != nil {
		return models.Pet{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return pet, nil
}

// ApplyBatch schreibt in Blöcken zu 25. Alle Löschungen laufen vor dem ersten Put.
// Bleiben nach MaxRetries noch UnprocessedItems übrig, fehlen sie im BatchResult.
func (s *DynamoStore) ApplyBatch(ctx context.Context, deletes []string, puts []models.Pet) (BatchResult, error) {
	var res BatchResult

	delReqs := make([]types.WriteRequest, 0, len(deletes))
	for _, id := range deletes {
		delReqs = append(delReqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		}})
	}
	n, err := s.writeAll(ctx, delReqs)
	res.Deleted = n
	if err != nil {
		return res, err
	}

	putReqs := make([]types.WriteRequest, 0, len(puts))
	for _, p := range puts {
		item, err := attributevalue.MarshalMap(p)
		if err != nil {
			return res, fmt.Errorf("encode %s: %w", p.ID, err)
		}
		putReqs = append(putReqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	n, err = s.writeAll(ctx, putReqs)
	res.Upserted = n
	return res, err
}

// writeAll liefert die Anzahl der tatsächlich angewendeten Requests.
func (s *DynamoStore) writeAll(ctx context.Context, reqs []types.WriteRequest) (int, error) {
	applied := 0
	for start := 0; start < len(reqs); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(reqs) {
			end = len(reqs)
		}
		chunk := reqs[start:end]
		left, err := s.writeChunk(ctx, chunk)
		applied += len(chunk) - left
		if err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (s *DynamoStore) writeChunk(ctx context.Context, chunk []types.WriteRequest) (int, error) {
	pending := map[string][]types.WriteRequest{s.Table: chunk}
	for attempt := 0; ; attempt++ {
		out, err := s.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return len(pending[s.Table]), fmt.Errorf("batch write %s: %w", s.Table, err)
		}
		pending = out.UnprocessedItems
		left := len(pending[s.Table])
		if left == 0 {
			return 0, nil
		}
		if attempt >= s.MaxRetries {
			s.Logger.Error("Giving up on unprocessed items", zap.Int("unprocessed", left), zap.Int("attempts", attempt+1))
			return left, nil
		}
		s.Logger.Warn("Retrying unprocessed items", zap.Int("unprocessed", left), zap.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return left, ctx.Err()
		case <-time.After(s.Backoff << attempt):
		}
	}
}

// AcquireLease schreibt den Lease-Eintrag nur, wenn er fehlt, abgelaufen ist oder schon uns gehört.
func (s *DynamoStore) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) error {
	now := s.now()
	item, err := attributevalue.MarshalMap(models.Lease{Name: name, Owner: owner, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return err
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.LeaseTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#name) OR expiresAt < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#name":  "name",
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrLeaseHeld
	}
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return nil
}

func (s *DynamoStore) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.LeaseTable),
		Key:                      map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: name}},
		ConditionExpression:      aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{"#owner": "owner"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		// abgelaufen und von einem anderen Lauf übernommen
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

func toPage(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (Page, error) {
	pets := make([]models.Pet, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &pets); err != nil {
		return Page{}, fmt.Errorf("decode items: %w", err)
	}
	next, err := encodeCursor(lastKey)
	if err != nil {
		return Page{}, err
	}
	return Page{Pets: pets, Next: next}, nil
}

// encodeCursor macht aus LastEvaluatedKey einen opaken String. Alle Schlüssel der Tabelle und Indizes sind Strings.
func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	var plain map[string]string
	if err := attributevalue.UnmarshalMap(key, &plain); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	b, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var plain map[string]string
	if err := json.Unmarshal(b, &plain); err != nil || len(plain) == 0 {
		return nil, ErrInvalidCursor
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for k, v := range plain {
		key[k] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}
