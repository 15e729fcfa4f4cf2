package dynamo

import (
	"fmt"

	"dndbot/store"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func marshalItem(item store.Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(map[string]any(store.NormalizeItem(item.Clone())))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return av, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (store.Item, error) {
	var raw map[string]any
	err := attributevalue.UnmarshalMapWithOptions(av, &raw, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return fromRaw(raw), nil
}

// fromRaw converts decoded numbers to int64 and nested maps to Item
func fromRaw(raw map[string]any) store.Item {
	item := make(store.Item, len(raw))
	for k, v := range raw {
		item[k] = rawValue(v)
	}
	return item
}

func rawValue(v any) any {
	switch x := v.(type) {
	case attributevalue.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		return x.String()
	case map[string]any:
		return fromRaw(x)
	default:
		return store.Normalize(x)
	}
}

func marshalValue(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(store.Normalize(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return av, nil
}

func keyAttributes(pk, sk string, key store.Key) map[string]types.AttributeValue {
	av := map[string]types.AttributeValue{
		pk: &types.AttributeValueMemberS{Value: key.Partition},
	}
	if sk != "" {
		av[sk] = &types.AttributeValueMemberS{Value: key.Sort}
	}
	return av
}
