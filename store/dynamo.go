package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gravyprompts/discovery/templates"
)

// DynamoClient is the subset of the DynamoDB API used by DynamoStore.
type DynamoClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore reads templates from a DynamoDB table.
//
// Table schema:
//   - Partition key: templateId (string)
//   - GSI userId-createdAt-index: userId (S) / createdAt (S, ISO-8601)
//   - GSI visibility-moderationStatus-index: visibility (S) / moderationStatus (S)
//
// Key attributes are strings, so continuation keys round-trip through Key
// without losing their type.
type DynamoStore struct {
	client DynamoClient
	table  string
}

// NewDynamoStore creates a DynamoStore over table.
func NewDynamoStore(client DynamoClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Query runs one page of an index query.
func (s *DynamoStore) Query(ctx context.Context, req Request) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}

	cond := req.Condition
	names := map[string]string{"#pk": cond.PartitionKey}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: cond.PartitionValue},
	}
	expr := "#pk = :pk"
	if cond.SortKey != "" {
		expr += " AND #sk = :sk"
		names["#sk"] = cond.SortKey
		values[":sk"] = &types.AttributeValueMemberS{Value: cond.SortValue}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(req.Index),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(!cond.Descending),
		ExclusiveStartKey:         toAttributeKey(req.StartKey),
	}
	if req.Limit > 0 {
		input.Limit = aws.Int32(int32(min(req.Limit, 1000)))
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return Page{}, fmt.Errorf("store: query %s: %w", req.Index, err)
	}

	page := Page{
		Items:   make([]templates.Template, 0, len(out.Items)),
		LastKey: fromAttributeKey(out.LastEvaluatedKey),
	}
	for _, item := range out.Items {
		page.Items = append(page.Items, decodeItem(item))
	}
	return page, nil
}

// Get reads one template by id.
func (s *DynamoStore) Get(ctx context.Context, id string) (templates.Template, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			AttrID: &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return templates.Template{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return templates.Template{}, ErrNotFound
	}
	return decodeItem(out.Item), nil
}

func toAttributeKey(k Key) map[string]types.AttributeValue {
	if len(k) == 0 {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(k))
	for name, v := range k {
		out[name] = &types.AttributeValueMemberS{Value: v}
	}
	return out
}

func fromAttributeKey(item map[string]types.AttributeValue) Key {
	if len(item) == 0 {
		return nil
	}
	k := make(Key, len(item))
	for name, av := range item {
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			k[name] = v.Value
		case *types.AttributeValueMemberN:
			k[name] = v.Value
		}
	}
	return k
}

// decodeItem maps an item onto a Template. Missing or mistyped attributes
// leave the zero value.
func decodeItem(item map[string]types.AttributeValue) templates.Template {
	return templates.Template{
		ID:               stringAttr(item, AttrID),
		Title:            stringAttr(item, "title"),
		Content:          stringAttr(item, "content"),
		Tags:             stringListAttr(item, "tags"),
		Variables:        stringListAttr(item, "variables"),
		Visibility:       templates.Visibility(stringAttr(item, AttrVisibility)),
		ModerationStatus: templates.ModerationStatus(stringAttr(item, AttrModerationStatus)),
		OwnerID:          stringAttr(item, AttrOwner),
		AuthorEmail:      stringAttr(item, "authorEmail"),
		Category:         stringAttr(item, "category"),
		Format:           stringAttr(item, "format"),
		CreatedAt:        timeAttr(item, AttrCreatedAt),
		UpdatedAt:        timeAttr(item, "updatedAt"),
		ViewCount:        intAttr(item, "viewCount"),
		UseCount:         intAttr(item, "useCount"),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// stringListAttr accepts a list of strings or a string set.
func stringListAttr(item map[string]types.AttributeValue, name string) []string {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberSS:
		return v.Value
	case *types.AttributeValueMemberL:
		out := make([]string, 0, len(v.Value))
		for _, e := range v.Value {
			if s, ok := e.(*types.AttributeValueMemberS); ok {
				out = append(out, s.Value)
			}
		}
		return out
	default:
		return nil
	}
}

func intAttr(item map[string]types.AttributeValue, name string) int {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		f, ferr := strconv.ParseFloat(v.Value, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

// timeAttr accepts ISO-8601 strings or epoch milliseconds.
func timeAttr(item map[string]types.AttributeValue, name string) time.Time {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberS:
		t, err := time.Parse(time.RFC3339Nano, v.Value)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	case *types.AttributeValueMemberN:
		ms, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	default:
		return time.Time{}
	}
}

var _ Store = (*DynamoStore)(nil)
