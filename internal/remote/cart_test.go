package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCart_NotFoundIsEmpty(t *testing.T) {
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.GET("/carts/", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	})

	cart, err := c.FetchCart(context.Background(), "tok")
	require.NoError(t, err)
	assert.NotNil(t, cart.Lines)
	assert.True(t, cart.IsEmpty())
}

func TestFetchCart_CoalescesDuplicateLines(t *testing.T) {
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.GET("/carts/", func(c echo.Context) error {
			return c.JSONBlob(http.StatusOK, []byte(`{"_id":"c1","items":[
				{"product":{"_id":"a","price":2},"quantity":1},
				{"product":{"_id":"a","price":2},"quantity":2},
				{"product":{"_id":"b","price":5},"quantity":1}]}`))
		})
	})

	cart, err := c.FetchCart(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "c1", cart.ID)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, 3, cart.Quantity("a"))
	assert.Equal(t, 11.0, cart.Total())
}

func TestAddItem_SendsContractBody(t *testing.T) {
	var got AddItemRequest
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.POST("/carts/add", func(c echo.Context) error {
			if err := json.NewDecoder(c.Request().Body).Decode(&got); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, map[string]any{"_id": "cart-9", "items": []any{}})
		})
	})

	id, err := c.AddItem(context.Background(), "tok", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, "cart-9", id)
	assert.Equal(t, AddItemRequest{ProductID: "p1", Quantity: 2}, got)
}

func TestAddItem_ValidatesBeforeRoundTrip(t *testing.T) {
	called := false
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.POST("/carts/add", func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})
	})

	_, err := c.AddItem(context.Background(), "tok", "p1", 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = c.AddItem(context.Background(), "tok", "", 1)
	require.ErrorIs(t, err, ErrValidation)
	_, err = c.AddItem(context.Background(), "", "p1", 1)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, called)
}

func TestUpdateQuantity_MissingLineIsNotFound(t *testing.T) {
	var got UpdateQuantityRequest
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.PATCH("/carts/update", func(c echo.Context) error {
			if err := c.Bind(&got); err != nil {
				return err
			}
			return c.JSON(http.StatusNotFound, map[string]string{"message": "product not in cart"})
		})
	})

	err := c.UpdateQuantity(context.Background(), "tok", "c1", "p1", 4)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "product not in cart", Message(err))
	assert.Equal(t, UpdateQuantityRequest{CartID: "c1", ProductID: "p1", Quantity: 4}, got)
}

func TestRemoveItem_DeleteWithBody(t *testing.T) {
	var got RemoveItemRequest
	c, _ := newBackend(t, func(e *echo.Echo) {
		e.DELETE("/carts/remove", func(c echo.Context) error {
			if err := json.NewDecoder(c.Request().Body).Decode(&got); err != nil {
				return err
			}
			return c.NoContent(http.StatusOK)
		})
	})

	require.NoError(t, c.RemoveItem(context.Background(), "tok", "c1", "p1"))
	assert.Equal(t, "p1", got.ProductID)
}
