package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap/zaptest"

	"pet-sync/config"
	"pet-sync/models"
)

// fakeDynamo nimmt Aufrufe auf und liefert vorbereitete Antworten.
type fakeDynamo struct {
	queries     []*dynamodb.QueryInput
	scans       []*dynamodb.ScanInput
	batches     [][]types.WriteRequest
	queryOut    *dynamodb.QueryOutput
	getOut      *dynamodb.GetItemOutput
	puts        []*dynamodb.PutItemInput
	putErr      error
	deletes     []*dynamodb.DeleteItemInput
	deleteErr   error
	unprocessed func(call int, reqs []types.WriteRequest) []types.WriteRequest
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.queryOut == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOut, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	return &dynamodb.ScanOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	var reqs []types.WriteRequest
	for _, r := range in.RequestItems {
		reqs = append(reqs, r...)
	}
	call := len(f.batches)
	f.batches = append(f.batches, reqs)
	out := &dynamodb.BatchWriteItemOutput{}
	if f.unprocessed != nil {
		if left := f.unprocessed(call, reqs); len(left) > 0 {
			out.UnprocessedItems = map[string][]types.WriteRequest{"Pets": left}
		}
	}
	return out, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func newTestDynamo(t *testing.T, fake *fakeDynamo) *DynamoStore {
	cfg := &config.Config{
		PetsTable:     "Pets",
		SyncIndex:     "SyncIndex",
		SpeciesIndex:  "SpeciesIndex",
		LeaseTable:    "PetSyncLeases",
		StorePageSize: 50,
	}
	s := NewDynamoStore(fake, cfg, zaptest.NewLogger(t))
	s.Backoff = time.Millisecond
	return s
}

func TestDynamoStore_QueryPartition(t *testing.T) {
	item, err := attributevalue.MarshalMap(models.Pet{
		ID: "SL1", Source: models.SourceShelterluv, Species: "dog", Photos: []string{"a.jpg"},
		SchemaVersion: models.SchemaV1AgeBucket,
	})
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	fake := &fakeDynamo{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{item},
		LastEvaluatedKey: map[string]types.AttributeValue{
			"id":     &types.AttributeValueMemberS{Value: "SL1"},
			"source": &types.AttributeValueMemberS{Value: "shelterluv"},
		},
	}}
	s := newTestDynamo(t, fake)

	page, err := s.QueryPartition(context.Background(), models.SourceShelterluv, "")
	if err != nil {
		t.Fatalf("QueryPartition: %v", err)
	}
	if len(page.Pets) != 1 || page.Pets[0].ID != "SL1" || page.Pets[0].Breed != nil {
		t.Fatalf("pets = %+v", page.Pets)
	}
	if page.Next == "" {
		t.Fatal("expected a cursor")
	}

	in := fake.queries[0]
	if aws.ToString(in.IndexName) != "SyncIndex" || in.ExpressionAttributeNames["#source"] != "source" {
		t.Errorf("unexpected query input %+v", in)
	}
	if aws.ToInt32(in.Limit) != 50 || in.ExclusiveStartKey != nil {
		t.Errorf("limit/start = %v/%v", in.Limit, in.ExclusiveStartKey)
	}

	// Cursor geht als ExclusiveStartKey zurück
	fake.queryOut = &dynamodb.QueryOutput{}
	page, err = s.QueryPartition(context.Background(), models.SourceShelterluv, page.Next)
	if err != nil || page.Next != "" {
		t.Fatalf("second page = %+v, %v", page, err)
	}
	start := fake.queries[1].ExclusiveStartKey
	if v, ok := start["id"].(*types.AttributeValueMemberS); !ok || v.Value != "SL1" {
		t.Errorf("start key = %v", start)
	}
}

func TestDynamoStore_ScanUsesSpeciesIndex(t *testing.T) {
	fake := &fakeDynamo{}
	s := newTestDynamo(t, fake)

	if _, err := s.Scan(context.Background(), Filter{Species: "cat"}, ""); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(fake.queries) != 1 || aws.ToString(fake.queries[0].IndexName) != "SpeciesIndex" {
		t.Fatalf("expected species index query, got %+v", fake.queries)
	}

	if _, err := s.Scan(context.Background(), Filter{}, ""); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(fake.scans) != 1 {
		t.Fatalf("expected table scan")
	}

	if _, err := s.Scan(context.Background(), Filter{}, "%%%"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, got %v", err)
	}
}

func TestDynamoStore_Get(t *testing.T) {
	fake := &fakeDynamo{}
	s := newTestDynamo(t, fake)
	if _, err := s.Get(context.Background(), "SL404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	item, _ := attributevalue.MarshalMap(models.Pet{ID: "SL1", Source: models.SourceShelterluv})
	fake.getOut = &dynamodb.GetItemOutput{Item: item}
	p, err := s.Get(context.Background(), "SL1")
	if err != nil || p.ID != "SL1" || p.SchemaVersion != models.SchemaLegacy {
		t.Fatalf("Get = %+v, %v", p, err)
	}
}

func TestDynamoStore_ApplyBatchChunksDeletesFirst(t *testing.T) {
	fake := &fakeDynamo{}
	s := newTestDynamo(t, fake)

	var deletes []string
	for i := 0; i < 30; i++ {
		deletes = append(deletes, fmt.Sprintf("SLdel%d", i))
	}
	var puts []models.Pet
	for i := 0; i < 26; i++ {
		puts = append(puts, models.Pet{ID: fmt.Sprintf("SLput%d", i), Source: models.SourceShelterluv})
	}

	res, err := s.ApplyBatch(context.Background(), deletes, puts)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Deleted != 30 || res.Upserted != 26 {
		t.Errorf("result = %+v", res)
	}
	sizes := []int{25, 5, 25, 1}
	if len(fake.batches) != len(sizes) {
		t.Fatalf("expected %d batch calls, got %d", len(sizes), len(fake.batches))
	}
	for i, want := range sizes {
		if len(fake.batches[i]) != want {
			t.Errorf("batch %d size = %d, want %d", i, len(fake.batches[i]), want)
		}
	}
	for _, r := range fake.batches[1] {
		if r.DeleteRequest == nil {
			t.Fatalf("batch 1 should only contain deletes")
		}
	}
	for _, r := range fake.batches[2] {
		if r.PutRequest == nil {
			t.Fatalf("batch 2 should only contain puts")
		}
	}
}

func TestDynamoStore_ApplyBatchRetriesUnprocessed(t *testing.T) {
	fake := &fakeDynamo{unprocessed: func(call int, reqs []types.WriteRequest) []types.WriteRequest {
		if call == 0 {
			return reqs[:2]
		}
		return nil
	}}
	s := newTestDynamo(t, fake)

	puts := []models.Pet{{ID: "SL1"}, {ID: "SL2"}, {ID: "SL3"}}
	res, err := s.ApplyBatch(context.Background(), nil, puts)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Upserted != 3 || len(fake.batches) != 2 || len(fake.batches[1]) != 2 {
		t.Fatalf("res=%+v calls=%d", res, len(fake.batches))
	}
}

func TestDynamoStore_ApplyBatchReportsDroppedWrites(t *testing.T) {
	fake := &fakeDynamo{unprocessed: func(_ int, reqs []types.WriteRequest) []types.WriteRequest {
		return reqs[:1]
	}}
	s := newTestDynamo(t, fake)
	s.MaxRetries = 2

	res, err := s.ApplyBatch(context.Background(), nil, []models.Pet{{ID: "SL1"}, {ID: "SL2"}})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Upserted != 1 {
		t.Errorf("expected 1 applied upsert, got %d", res.Upserted)
	}
	if len(fake.batches) != 3 {
		t.Errorf("expected initial call plus 2 retries, got %d", len(fake.batches))
	}
}

func TestDynamoStore_Lease(t *testing.T) {
	fake := &fakeDynamo{}
	s := newTestDynamo(t, fake)
	if err := s.AcquireLease(context.Background(), "sync:airtable", "run-a", time.Minute); err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	in := fake.puts[0]
	if aws.ToString(in.TableName) != "PetSyncLeases" || in.ConditionExpression == nil {
		t.Fatalf("unexpected put %+v", in)
	}
	var lease models.Lease
	if err := attributevalue.UnmarshalMap(in.Item, &lease); err != nil || lease.Owner != "run-a" {
		t.Fatalf("lease item = %+v, %v", lease, err)
	}

	fake.putErr = &types.ConditionalCheckFailedException{Message: aws.String("held")}
	if err := s.AcquireLease(context.Background(), "sync:airtable", "run-b", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}

	fake.deleteErr = &types.ConditionalCheckFailedException{Message: aws.String("taken over")}
	if err := s.ReleaseLease(context.Background(), "sync:airtable", "run-a"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	key := map[string]types.AttributeValue{
		"id":      &types.AttributeValueMemberS{Value: "AT9"},
		"species": &types.AttributeValueMemberS{Value: "cat"},
	}
	c, err := encodeCursor(key)
	if err != nil || c == "" {
		t.Fatalf("encodeCursor = %q, %v", c, err)
	}
	back, err := decodeCursor(c)
	if err != nil || len(back) != 2 {
		t.Fatalf("decodeCursor = %v, %v", back, err)
	}
	if v := back["species"].(*types.AttributeValueMemberS).Value; v != "cat" {
		t.Errorf("species = %s", v)
	}
	if c, _ := encodeCursor(nil); c != "" {
		t.Errorf("empty key should give empty cursor")
	}
}
