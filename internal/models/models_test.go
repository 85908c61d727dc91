// internal/models/models_test.go
package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestModelsParse(t *testing.T) {
	cache := &sync.Map{}
	for _, model := range []interface{}{
		&Profile{}, &Category{}, &Product{}, &Order{}, &OrderItem{}, &AuditLog{}, &WebhookEvent{},
	} {
		_, err := schema.Parse(model, cache, schema.NamingStrategy{})
		require.NoError(t, err, "%T", model)
	}
}

func TestProductArrayColumns(t *testing.T) {
	s, err := schema.Parse(&Product{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"Tags", "Images"} {
		field := s.LookUpField(name)
		require.NotNil(t, field, name)
		assert.Equal(t, schema.DataType("text"), field.DataType, name)
	}
}

func TestStringArrayValueScan(t *testing.T) {
	value, err := StringArray{"mug", "blue, glazed"}.Value()
	require.NoError(t, err)

	var scanned StringArray
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, StringArray{"mug", "blue, glazed"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
}

func TestOrderTransitions(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.True(t, order.CanTransitionTo(OrderStatusConfirmed))
	assert.False(t, order.CanTransitionTo(OrderStatusShipped))

	order.Status = OrderStatusDelivered
	assert.False(t, order.CanTransitionTo(OrderStatusCancelled))
}
