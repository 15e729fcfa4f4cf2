package dynamo

import (
	"errors"
	"fmt"

	"dndbot/store"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// mapError translates service exceptions into the store sentinels
func mapError(op, table string, err error) error {
	if err == nil {
		return nil
	}

	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return fmt.Errorf("%s %s: %w", op, table, store.ErrTableExists)
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s %s: %w", op, table, store.ErrTableNotFound)
	}
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return store.ErrConditionFailed
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s %s: %s: %w", op, table, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
