package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"line-memo-relay/internal/domain"
)

// fakeDynamo keeps items in memory keyed by PK/SK and serves begins_with
// queries in sort-key order, optionally in pages of pageSize items.
type fakeDynamo struct {
	items    map[string]map[string]types.AttributeValue
	pageSize int

	getErr    error
	putErr    error
	deleteErr error
	queryErr  error

	queryCalls   int
	lastPutInput *dynamodb.PutItemInput
	lastDelInput *dynamodb.DeleteItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(pk, sk string) string { return pk + "|" + sk }

func sAttr(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(sAttr(in.Key, "PK"), sAttr(in.Key, "SK"))]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(sAttr(in.Item, "PK"), sAttr(in.Item, "SK"))] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelInput = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.items, itemKey(sAttr(in.Key, "PK"), sAttr(in.Key, "SK")))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pk := sAttr(in.ExpressionAttributeValues, ":pk")
	prefix := sAttr(in.ExpressionAttributeValues, ":prefix")

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if sAttr(item, "PK") == pk && strings.HasPrefix(sAttr(item, "SK"), prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return sAttr(matched[i], "SK") < sAttr(matched[j], "SK") })

	start := 0
	if in.ExclusiveStartKey != nil {
		after := sAttr(in.ExclusiveStartKey, "SK")
		for start < len(matched) && sAttr(matched[start], "SK") <= after {
			start++
		}
	}
	matched = matched[start:]
	out := &dynamodb.QueryOutput{Items: matched}
	if f.pageSize > 0 && len(matched) > f.pageSize {
		out.Items = matched[:f.pageSize]
		last := out.Items[len(out.Items)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}

func mustNewStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "test-table")
	require.NoError(t, err)
	seq := 0
	s.newID = func() string {
		seq++
		return fmt.Sprintf("%08d", seq)
	}
	return s
}

func TestNewDynamoStore_Validates(t *testing.T) {
	_, err := NewDynamoStore(nil, "t")
	require.Error(t, err)
	_, err = NewDynamoStore(newFakeDynamo(), " ")
	require.Error(t, err)
}

func TestDynamoStore_AppendAndList(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "a"))
	require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "b"))
	require.NoError(t, s.Append(ctx, "U1", domain.ListURL, "https://example.com"))
	require.NoError(t, s.Append(ctx, "U2", domain.ListMemo, "other user"))

	require.Equal(t, "USER#U2", sAttr(db.lastPutInput.Item, "PK"))
	require.Equal(t, "MEMO#00000004", sAttr(db.lastPutInput.Item, "SK"))
	require.NotNil(t, db.lastPutInput.ConditionExpression)

	memos, err := s.List(ctx, "U1", domain.ListMemo)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, memos)

	urls, err := s.List(ctx, "U1", domain.ListURL)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com"}, urls)
}

func TestDynamoStore_ListEmpty(t *testing.T) {
	s := mustNewStore(t, newFakeDynamo())
	entries, err := s.List(context.Background(), "U1", domain.ListMemo)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDynamoStore_ListPaginates(t *testing.T) {
	db := newFakeDynamo()
	db.pageSize = 2
	s := mustNewStore(t, db)
	ctx := context.Background()
	for _, v := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, v))
	}

	entries, err := s.List(ctx, "U1", domain.ListMemo)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, entries)
	require.Equal(t, 3, db.queryCalls)
}

func TestDynamoStore_DeleteAtShiftsEntries(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, v))
	}

	require.NoError(t, s.DeleteAt(ctx, "U1", domain.ListMemo, 2))
	require.Equal(t, "MEMO#00000002", sAttr(db.lastDelInput.Key, "SK"))

	entries, err := s.List(ctx, "U1", domain.ListMemo)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "d"}, entries)
}

func TestDynamoStore_DeleteAtOutOfRange(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "U1", domain.ListMemo, "a"))

	for _, idx := range []int{0, -1, 2} {
		err := s.DeleteAt(ctx, "U1", domain.ListMemo, idx)
		require.ErrorIs(t, err, domain.ErrIndexOutOfRange, "index=%d", idx)
	}
	require.Nil(t, db.lastDelInput)
}

func TestDynamoStore_UnsupportedKind(t *testing.T) {
	s := mustNewStore(t, newFakeDynamo())
	require.Error(t, s.Append(context.Background(), "U1", domain.ListKind("TODO"), "x"))
	_, err := s.List(context.Background(), "U1", domain.ListKind("TODO"))
	require.Error(t, err)
}

func TestDynamoStore_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	db := newFakeDynamo()
	db.putErr = boom
	err := mustNewStore(t, db).Append(ctx, "U1", domain.ListMemo, "a")
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "Append")

	db = newFakeDynamo()
	db.queryErr = boom
	_, err = mustNewStore(t, db).List(ctx, "U1", domain.ListMemo)
	require.ErrorIs(t, err, boom)
	err = mustNewStore(t, db).DeleteAt(ctx, "U1", domain.ListMemo, 1)
	require.ErrorIs(t, err, boom)

	db = newFakeDynamo()
	db.getErr = boom
	_, err = mustNewStore(t, db).GetMode(ctx, "U1")
	require.ErrorIs(t, err, boom)
}

func TestDynamoStore_ModeLifecycle(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()

	mode, err := s.GetMode(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, domain.ModeIdle, mode)

	require.NoError(t, s.SetMode(ctx, "U1", domain.ModeAwaitingURLDelete))
	require.Equal(t, "waiting_url_delete", sAttr(db.lastPutInput.Item, "mode"))
	mode, err = s.GetMode(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, domain.ModeAwaitingURLDelete, mode)

	require.NoError(t, s.ClearMode(ctx, "U1"))
	mode, err = s.GetMode(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, domain.ModeIdle, mode)
}

func TestDynamoStore_SetIdleClears(t *testing.T) {
	db := newFakeDynamo()
	s := mustNewStore(t, db)
	ctx := context.Background()
	require.NoError(t, s.SetMode(ctx, "U1", domain.ModeAwaitingMemoInput))
	require.NoError(t, s.SetMode(ctx, "U1", domain.ModeIdle))
	require.Equal(t, skMode, sAttr(db.lastDelInput.Key, "SK"))
	require.Empty(t, db.items)
}

func TestDynamoStore_GetModeUnknownValue(t *testing.T) {
	db := newFakeDynamo()
	db.items[itemKey("USER#U1", skMode)] = map[string]types.AttributeValue{
		"PK":   &types.AttributeValueMemberS{Value: "USER#U1"},
		"SK":   &types.AttributeValueMemberS{Value: skMode},
		"mode": &types.AttributeValueMemberS{Value: "waiting_input"},
	}
	_, err := mustNewStore(t, db).GetMode(context.Background(), "U1")
	require.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestDynamoStore_ListMalformedItem(t *testing.T) {
	db := newFakeDynamo()
	db.items[itemKey("USER#U1", "MEMO#1")] = map[string]types.AttributeValue{
		"PK":   &types.AttributeValueMemberS{Value: "USER#U1"},
		"SK":   &types.AttributeValueMemberS{Value: "MEMO#1"},
		"text": &types.AttributeValueMemberN{Value: "3"},
	}
	_, err := mustNewStore(t, db).List(context.Background(), "U1", domain.ListMemo)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a string")
}
