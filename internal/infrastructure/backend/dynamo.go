package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/example/autoparts-storefront/internal/domain/coupon"
	"github.com/example/autoparts-storefront/internal/domain/order"
)

// Dynamo implements Client over DynamoDB tables. Orders and their lines
// share one table under a composite key (order id + "HEADER"/"ITEM#..."
// sort key); products and coupons get a table each.
type Dynamo struct {
	client       *dynamodb.Client
	productTable string
	couponTable  string
	orderTable   string
}

func NewDynamo(client *dynamodb.Client, productTable, couponTable, orderTable string) *Dynamo {
	return &Dynamo{
		client:       client,
		productTable: productTable,
		couponTable:  couponTable,
		orderTable:   orderTable,
	}
}

// Monetary amounts are stored as strings so they round-trip exactly.
type dynamoProduct struct {
	ID       string `dynamodbav:"id"`
	Name     string `dynamodbav:"name"`
	Brand    string `dynamodbav:"brand"`
	Image    string `dynamodbav:"image,omitempty"`
	Price    string `dynamodbav:"price"`
	Stock    int    `dynamodbav:"stock"`
	Reserved int    `dynamodbav:"reserved"`
}

type dynamoCoupon struct {
	CodeLower     string `dynamodbav:"code_lower"`
	ID            string `dynamodbav:"id"`
	Code          string `dynamodbav:"code"`
	DiscountType  string `dynamodbav:"discount_type"`
	DiscountValue string `dynamodbav:"discount_value"`
	MinPurchase   string `dynamodbav:"min_purchase,omitempty"`
	MaxDiscount   string `dynamodbav:"max_discount,omitempty"`
	ValidFrom     string `dynamodbav:"valid_from,omitempty"`
	ValidUntil    string `dynamodbav:"valid_until,omitempty"`
	MaxUses       *int   `dynamodbav:"max_uses,omitempty"`
	UsesCount     int    `dynamodbav:"uses_count"`
	IsActive      bool   `dynamodbav:"is_active"`
}

type dynamoOrderHeader struct {
	OrderID       string `dynamodbav:"order_id"`
	SK            string `dynamodbav:"sk"`
	UserID        string `dynamodbav:"user_id"`
	Status        string `dynamodbav:"status"`
	Subtotal      string `dynamodbav:"subtotal"`
	Discount      string `dynamodbav:"discount"`
	Tax           string `dynamodbav:"tax"`
	Shipping      string `dynamodbav:"shipping"`
	Total         string `dynamodbav:"total"`
	CouponCode    string `dynamodbav:"coupon_code,omitempty"`
	ShipName      string `dynamodbav:"ship_name"`
	ShipPhone     string `dynamodbav:"ship_phone"`
	ShipStreet    string `dynamodbav:"ship_street"`
	ShipCity      string `dynamodbav:"ship_city"`
	ShipNotes     string `dynamodbav:"ship_notes,omitempty"`
	PaymentMethod string `dynamodbav:"payment_method"`
	CreatedAt     string `dynamodbav:"created_at"`
}

type dynamoOrderLine struct {
	OrderID   string `dynamodbav:"order_id"`
	SK        string `dynamodbav:"sk"`
	ProductID string `dynamodbav:"product_id"`
	Title     string `dynamodbav:"title"`
	UnitPrice string `dynamodbav:"unit_price"`
	Quantity  int    `dynamodbav:"quantity"`
	Subtotal  string `dynamodbav:"subtotal"`
}

const headerSortKey = "HEADER"

func (d *Dynamo) getProduct(ctx context.Context, productID string) (*dynamoProduct, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.productTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if out.Item == nil {
		return nil, ErrProductNotFound
	}

	var item dynamoProduct
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &item, nil
}

func (d *Dynamo) AvailableStock(ctx context.Context, productID string) (int, error) {
	item, err := d.getProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	available := item.Stock - item.Reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (d *Dynamo) ProductByID(ctx context.Context, productID string) (*Product, error) {
	item, err := d.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return item.toProduct()
}

func (d *Dynamo) ListProducts(ctx context.Context) ([]Product, error) {
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.productTable),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	var items []dynamoProduct
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal products: %w", err)
	}

	products := make([]Product, 0, len(items))
	for _, item := range items {
		p, err := item.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func (item *dynamoProduct) toProduct() (*Product, error) {
	price, err := decimal.NewFromString(item.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price for product %s: %w", item.ID, err)
	}
	return &Product{
		ID:       item.ID,
		Name:     item.Name,
		Brand:    item.Brand,
		Image:    item.Image,
		Price:    price,
		Stock:    item.Stock,
		Reserved: item.Reserved,
	}, nil
}

func (d *Dynamo) CouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.couponTable),
		Key: map[string]types.AttributeValue{
			"code_lower": &types.AttributeValueMemberS{Value: strings.ToLower(code)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoCoupon
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coupon: %w", err)
	}

	c := &coupon.Coupon{
		ID:           item.ID,
		Code:         item.Code,
		DiscountType: coupon.DiscountType(item.DiscountType),
		UsesCount:    item.UsesCount,
		MaxUses:      item.MaxUses,
		IsActive:     item.IsActive,
	}
	if c.DiscountValue, err = decimal.NewFromString(item.DiscountValue); err != nil {
		return nil, fmt.Errorf("invalid discount value for coupon %s: %w", item.Code, err)
	}
	if item.MinPurchase != "" {
		v, err := decimal.NewFromString(item.MinPurchase)
		if err != nil {
			return nil, fmt.Errorf("invalid min purchase for coupon %s: %w", item.Code, err)
		}
		c.MinPurchase = &v
	}
	if item.MaxDiscount != "" {
		v, err := decimal.NewFromString(item.MaxDiscount)
		if err != nil {
			return nil, fmt.Errorf("invalid max discount for coupon %s: %w", item.Code, err)
		}
		c.MaxDiscount = &v
	}
	if item.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339Nano, item.ValidFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_from for coupon %s: %w", item.Code, err)
		}
		c.ValidFrom = &t
	}
	if item.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339Nano, item.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_until for coupon %s: %w", item.Code, err)
		}
		c.ValidUntil = &t
	}
	return c, nil
}

func (d *Dynamo) IncrementCouponUsage(ctx context.Context, couponID string) error {
	// The coupon table is keyed by lowercased code, so find the item by id
	// first. Usage increments are rare enough that the scan does not hurt.
	out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(d.couponTable),
		FilterExpression:          aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: couponID}},
	})
	if err != nil {
		return fmt.Errorf("failed to find coupon: %w", err)
	}
	if len(out.Items) == 0 {
		return fmt.Errorf("coupon %s not found", couponID)
	}

	var item dynamoCoupon
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return fmt.Errorf("failed to unmarshal coupon: %w", err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.couponTable),
		Key: map[string]types.AttributeValue{
			"code_lower": &types.AttributeValueMemberS{Value: item.CodeLower},
		},
		UpdateExpression:          aws.String("ADD uses_count :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
	})
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return nil
}

func (d *Dynamo) CreateOrderHeader(ctx context.Context, o *order.Order) (string, error) {
	item := dynamoOrderHeader{
		OrderID:       o.ID,
		SK:            headerSortKey,
		UserID:        o.UserID,
		Status:        string(o.Status),
		Subtotal:      o.Subtotal.String(),
		Discount:      o.Discount.String(),
		Tax:           o.Tax.String(),
		Shipping:      o.Shipping.String(),
		Total:         o.Total.String(),
		CouponCode:    o.CouponCode,
		ShipName:      o.ShippingAddress.Name,
		ShipPhone:     o.ShippingAddress.Phone,
		ShipStreet:    o.ShippingAddress.Street,
		ShipCity:      o.ShippingAddress.City,
		ShipNotes:     o.ShippingAddress.Notes,
		PaymentMethod: string(o.PaymentMethod),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order header: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.orderTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(order_id)"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put order header: %w", err)
	}
	return o.ID, nil
}

func (d *Dynamo) CreateOrderLines(ctx context.Context, lines []order.Line) error {
	for _, l := range lines {
		item := dynamoOrderLine{
			OrderID:   l.OrderID,
			SK:        "ITEM#" + l.ProductID,
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice.String(),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal.String(),
		}

		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("failed to marshal order line: %w", err)
		}
		if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(d.orderTable),
			Item:      av,
		}); err != nil {
			return fmt.Errorf("failed to put order line: %w", err)
		}
	}
	return nil
}

func (d *Dynamo) DeleteOrder(ctx context.Context, orderID string) error {
	// Remove every item under the order id, header included.
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.orderTable),
		KeyConditionExpression:    aws.String("order_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: orderID}},
	})
	if err != nil {
		return fmt.Errorf("failed to query order: %w", err)
	}
	if len(out.Items) == 0 {
		return ErrOrderNotFound
	}

	for _, item := range out.Items {
		sk := item["sk"]
		if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.orderTable),
			Key: map[string]types.AttributeValue{
				"order_id": &types.AttributeValueMemberS{Value: orderID},
				"sk":       sk,
			},
		}); err != nil {
			return fmt.Errorf("failed to delete order item: %w", err)
		}
	}
	return nil
}

// DecrementStock reduces on-hand stock by quantity, floored at zero.
// Read-then-write with no condition expression, so concurrent orders can
// lose an update. Swap this method for a conditional update to harden it.
func (d *Dynamo) DecrementStock(ctx context.Context, productID string, quantity int) error {
	item, err := d.getProduct(ctx, productID)
	if err != nil {
		return err
	}

	next := item.Stock - quantity
	if next < 0 {
		next = 0
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.productTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: productID},
		},
		UpdateExpression:          aws.String("SET stock = :next"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":next": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)}},
	})
	if err != nil {
		return fmt.Errorf("failed to write stock: %w", err)
	}
	return nil
}
