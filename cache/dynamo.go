package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gravyprompts/discovery/observe"
	"github.com/gravyprompts/discovery/resilience"
)

// DynamoDB attribute names used by DynamoCache.
//
// Table schema:
//   - Partition key: pk (string) - the cache key
//   - value (binary), expires_ms (number), size (number)
//   - expires_at (number, epoch seconds) - enable DynamoDB TTL on this attribute
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name discovery-cache \
//	  --attribute-definitions AttributeName=pk,AttributeType=S \
//	  --key-schema AttributeName=pk,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//	aws dynamodb update-time-to-live --table-name discovery-cache \
//	  --time-to-live-specification Enabled=true,AttributeName=expires_at
const (
	attrKey       = "pk"
	attrValue     = "value"
	attrExpiresAt = "expires_at"
	attrExpiresMS = "expires_ms"
	attrSize      = "size"
)

// PingKey is the row Ping reads. It is never written.
const PingKey = "health:ping"

// DynamoClient is the subset of the DynamoDB API used by DynamoCache.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoCacheConfig configures DynamoCache.
type DynamoCacheConfig struct {
	// Table is the DynamoDB table name. Required.
	Table string

	// Policy supplies TTL defaults. Capacity and MaxBytes are not enforced;
	// DynamoDB TTL expiry bounds the table instead.
	Policy Policy

	// Timeout bounds every backend call.
	// Default: 250ms
	Timeout time.Duration

	// Breaker configures the circuit breaker that short-circuits calls while
	// the table is failing.
	Breaker resilience.CircuitBreakerConfig

	// Throttle caps the call rate against the table. Zero Rate disables it.
	Throttle resilience.RateLimiterConfig

	// Logger receives backend failures. Default: no-op.
	Logger observe.Logger
}

// DynamoCache is a Cache shared by every instance that points at the same
// table. It gives cross-instance consistency for invalidation at the price of
// a network round trip per operation. Any backend failure is logged and
// reported to the caller as a miss or a no-op.
type DynamoCache struct {
	client DynamoClient
	table  string
	policy Policy
	exec   *resilience.Executor
	logger observe.Logger
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	bytes  atomic.Int64
}

// NewDynamoCache creates a DynamoDB-backed cache.
func NewDynamoCache(client DynamoClient, config DynamoCacheConfig) *DynamoCache {
	if config.Timeout <= 0 {
		config.Timeout = 250 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	logger := config.Logger.With(observe.Field{Key: "component", Value: "cache.dynamodb"})

	breaker := config.Breaker
	onChange := breaker.OnStateChange
	breaker.OnStateChange = func(from, to resilience.State) {
		logger.Warn(context.Background(), "cache breaker state changed",
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
		if onChange != nil {
			onChange(from, to)
		}
	}

	exec := resilience.ExecutorConfig{
		Breaker: resilience.NewCircuitBreaker(breaker),
		Timeout: config.Timeout,
	}
	if config.Throttle.Rate > 0 {
		exec.Limiter = resilience.NewRateLimiter(config.Throttle)
	}

	return &DynamoCache{
		client: client,
		table:  config.Table,
		policy: config.Policy,
		exec:   resilience.NewExecutor(exec),
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves a value. Rows past their expiry are misses even if DynamoDB
// has not deleted them yet.
func (c *DynamoCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var out *dynamodb.GetItemOutput
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(c.table),
			Key:            keyAttr(key),
			ConsistentRead: aws.Bool(true),
		})
		return err
	})
	if err != nil {
		c.logger.Warn(ctx, "cache get failed", observe.Field{Key: "key", Value: key}, observe.Field{Key: "error", Value: err.Error()})
		c.misses.Add(1)
		return nil, false
	}
	if out == nil || len(out.Item) == 0 {
		c.misses.Add(1)
		return nil, false
	}

	expires, ok := numberAttr(out.Item[attrExpiresMS])
	if !ok || c.now().UnixMilli() >= expires {
		c.misses.Add(1)
		return nil, false
	}

	value, ok := out.Item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return value.Value, true
}

// Set stores a value with the effective TTL.
func (c *DynamoCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = c.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	expires := c.now().Add(ttl)
	size := int64(len(key) + len(value))

	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(c.table),
			Item: map[string]types.AttributeValue{
				attrKey:       &types.AttributeValueMemberS{Value: key},
				attrValue:     &types.AttributeValueMemberB{Value: value},
				attrExpiresAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(expires.Unix(), 10)},
				attrExpiresMS: &types.AttributeValueMemberN{Value: strconv.FormatInt(expires.UnixMilli(), 10)},
				attrSize:      &types.AttributeValueMemberN{Value: strconv.FormatInt(size, 10)},
			},
		})
		return err
	})
	if err != nil {
		c.logger.Warn(ctx, "cache set failed", observe.Field{Key: "key", Value: key}, observe.Field{Key: "error", Value: err.Error()})
		return nil
	}

	c.sets.Add(1)
	c.bytes.Add(size)
	return nil
}

// Delete removes a value.
func (c *DynamoCache) Delete(ctx context.Context, key string) error {
	if err := c.deleteKey(ctx, key); err != nil {
		c.logger.Warn(ctx, "cache delete failed", observe.Field{Key: "key", Value: key}, observe.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

// Clear removes every row in the table and resets this instance's counters.
func (c *DynamoCache) Clear(ctx context.Context) error {
	c.removeWhere(ctx, "", func(string) bool { return true })
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.bytes.Store(0)
	return nil
}

// ClearPattern removes every row whose key matches the glob. The scan is
// narrowed server-side with begins_with on the pattern's literal prefix.
func (c *DynamoCache) ClearPattern(ctx context.Context, pattern string) (int, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return 0, err
	}
	return c.removeWhere(ctx, p.Prefix(), p.Match), nil
}

// Metrics returns this instance's view of cache activity. Size and memory are
// not known for the shared table: Size is always 0 and ApproxMemoryMB counts
// bytes written by this instance.
func (c *DynamoCache) Metrics() Metrics {
	hits, misses := c.hits.Load(), c.misses.Load()
	return Metrics{
		Hits:           hits,
		Misses:         misses,
		Sets:           c.sets.Load(),
		HitRate:        hitRate(hits, misses),
		ApproxMemoryMB: bytesToMB(c.bytes.Load()),
	}
}

// Ping reads PingKey from the table through the same guards as every other
// call. Counters are left alone, so health checks do not skew the hit rate.
func (c *DynamoCache) Ping(ctx context.Context) error {
	return c.exec.Execute(ctx, func(ctx context.Context) error {
		_, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(c.table),
			Key:       keyAttr(PingKey),
		})
		return err
	})
}

func (c *DynamoCache) removeWhere(ctx context.Context, prefix string, match func(string) bool) int {
	removed := 0
	var startKey map[string]types.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(c.table),
			ProjectionExpression: aws.String(attrKey),
			ExclusiveStartKey:    startKey,
		}
		if prefix != "" {
			input.FilterExpression = aws.String("begins_with(#k, :prefix)")
			input.ExpressionAttributeNames = map[string]string{"#k": attrKey}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: prefix},
			}
		}

		var out *dynamodb.ScanOutput
		err := c.exec.Execute(ctx, func(ctx context.Context) error {
			var err error
			out, err = c.client.Scan(ctx, input)
			return err
		})
		if err != nil {
			c.logger.Warn(ctx, "cache scan failed", observe.Field{Key: "prefix", Value: prefix}, observe.Field{Key: "error", Value: err.Error()})
			return removed
		}

		for _, item := range out.Items {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok || !match(k.Value) {
				continue
			}
			if err := c.deleteKey(ctx, k.Value); err != nil {
				c.logger.Warn(ctx, "cache delete failed", observe.Field{Key: "key", Value: k.Value}, observe.Field{Key: "error", Value: err.Error()})
				continue
			}
			removed++
		}

		if len(out.LastEvaluatedKey) == 0 {
			return removed
		}
		startKey = out.LastEvaluatedKey
	}
}

func (c *DynamoCache) deleteKey(ctx context.Context, key string) error {
	return c.exec.Execute(ctx, func(ctx context.Context) error {
		_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.table),
			Key:       keyAttr(key),
		})
		return err
	})
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key},
	}
}

func numberAttr(av types.AttributeValue) (int64, bool) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	_ Cache  = (*DynamoCache)(nil)
	_ Pinger = (*DynamoCache)(nil)
)
