package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PraiaOps/PraiAtiva-sub001/services/payment-service/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EnrollmentIndex is the GSI on the transactions table keyed by enrollment_id.
const EnrollmentIndex = "enrollment_id-index"

// DynamoAPI is the subset of *dynamodb.Client the adapter uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoAdapter stores payments in a table keyed by `payment_id` and ledger
// entries in a table keyed by `transaction_id`.
type DynamoAdapter struct {
	client            DynamoAPI
	paymentsTable     string
	transactionsTable string
}

func NewDynamoAdapter(client DynamoAPI, paymentsTable, transactionsTable string) *DynamoAdapter {
	return &DynamoAdapter{client: client, paymentsTable: paymentsTable, transactionsTable: transactionsTable}
}

type ddbPayment struct {
	PaymentID          string  `dynamodbav:"payment_id"`
	EnrollmentID       string  `dynamodbav:"enrollment_id"`
	StudentID          string  `dynamodbav:"student_id,omitempty"`
	InstructorID       string  `dynamodbav:"instructor_id,omitempty"`
	StudentName        string  `dynamodbav:"student_name"`
	ActivityName       string  `dynamodbav:"activity_name"`
	AmountMinor        int64   `dynamodbav:"amount_minor"`
	Currency           string  `dynamodbav:"currency"`
	SessionID          *string `dynamodbav:"session_id,omitempty"`
	CheckoutURL        *string `dynamodbav:"checkout_url,omitempty"`
	ProcessorPaymentID *string `dynamodbav:"processor_payment_id,omitempty"`
	Status             string  `dynamodbav:"status"`
	CreatedAt          string  `dynamodbav:"created_at"`
	UpdatedAt          string  `dynamodbav:"updated_at"`
	PaidAt             *string `dynamodbav:"paid_at,omitempty"`
	RefundedAt         *string `dynamodbav:"refunded_at,omitempty"`
}

type ddbTransaction struct {
	TransactionID          string `dynamodbav:"transaction_id"`
	PaymentID              string `dynamodbav:"payment_id"`
	EnrollmentID           string `dynamodbav:"enrollment_id"`
	Type                   string `dynamodbav:"type"`
	AmountMinor            int64  `dynamodbav:"amount_minor"`
	CommissionMinor        int64  `dynamodbav:"commission_minor"`
	InstructorAmountMinor  int64  `dynamodbav:"instructor_amount_minor"`
	Currency               string `dynamodbav:"currency"`
	Status                 string `dynamodbav:"status"`
	ProcessorTransactionID string `dynamodbav:"processor_transaction_id"`
	CreatedAt              string `dynamodbav:"created_at"`
	CompletedAt            string `dynamodbav:"completed_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func toDDBPayment(p *models.Payment) ddbPayment {
	return ddbPayment{
		PaymentID:          p.ID,
		EnrollmentID:       p.EnrollmentID,
		StudentID:          p.StudentID,
		InstructorID:       p.InstructorID,
		StudentName:        p.StudentName,
		ActivityName:       p.ActivityName,
		AmountMinor:        int64(p.Amount),
		Currency:           p.Currency,
		SessionID:          p.SessionID,
		CheckoutURL:        p.CheckoutURL,
		ProcessorPaymentID: p.ProcessorPaymentID,
		Status:             string(p.Status),
		CreatedAt:          formatTime(p.CreatedAt),
		UpdatedAt:          formatTime(p.UpdatedAt),
		PaidAt:             formatTimePtr(p.PaidAt),
		RefundedAt:         formatTimePtr(p.RefundedAt),
	}
}

func (dp ddbPayment) toModel() *models.Payment {
	return &models.Payment{
		ID:                 dp.PaymentID,
		EnrollmentID:       dp.EnrollmentID,
		StudentID:          dp.StudentID,
		InstructorID:       dp.InstructorID,
		StudentName:        dp.StudentName,
		ActivityName:       dp.ActivityName,
		Amount:             models.Money(dp.AmountMinor),
		Currency:           dp.Currency,
		SessionID:          dp.SessionID,
		CheckoutURL:        dp.CheckoutURL,
		ProcessorPaymentID: dp.ProcessorPaymentID,
		Status:             models.PaymentStatus(dp.Status),
		CreatedAt:          parseTime(dp.CreatedAt),
		UpdatedAt:          parseTime(dp.UpdatedAt),
		PaidAt:             parseTimePtr(dp.PaidAt),
		RefundedAt:         parseTimePtr(dp.RefundedAt),
	}
}

func toDDBTransaction(tx *models.Transaction) ddbTransaction {
	return ddbTransaction{
		TransactionID:          tx.ID,
		PaymentID:              tx.PaymentID,
		EnrollmentID:           tx.EnrollmentID,
		Type:                   string(tx.Type),
		AmountMinor:            int64(tx.Amount),
		CommissionMinor:        int64(tx.Commission),
		InstructorAmountMinor:  int64(tx.InstructorAmount),
		Currency:               tx.Currency,
		Status:                 string(tx.Status),
		ProcessorTransactionID: tx.ProcessorTransactionID,
		CreatedAt:              formatTime(tx.CreatedAt),
		CompletedAt:            formatTime(tx.CompletedAt),
	}
}

func (dt ddbTransaction) toModel() models.Transaction {
	return models.Transaction{
		ID:                     dt.TransactionID,
		PaymentID:              dt.PaymentID,
		EnrollmentID:           dt.EnrollmentID,
		Type:                   models.TransactionType(dt.Type),
		Amount:                 models.Money(dt.AmountMinor),
		Commission:             models.Money(dt.CommissionMinor),
		InstructorAmount:       models.Money(dt.InstructorAmountMinor),
		Currency:               dt.Currency,
		Status:                 models.TransactionStatus(dt.Status),
		ProcessorTransactionID: dt.ProcessorTransactionID,
		CreatedAt:              parseTime(dt.CreatedAt),
		CompletedAt:            parseTime(dt.CompletedAt),
	}
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	return errors.As(err, &tce)
}

func (d *DynamoAdapter) CreatePayment(ctx context.Context, payment *models.Payment) error {
	item, err := attributevalue.MarshalMap(toDDBPayment(payment))
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.paymentsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(payment_id)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (d *DynamoAdapter) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.paymentsTable),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dp ddbPayment
	if err := attributevalue.UnmarshalMap(out.Item, &dp); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return dp.toModel(), nil
}

func (d *DynamoAdapter) AttachSession(ctx context.Context, id string, session models.CheckoutSession, at time.Time) error {
	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": id})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	values := map[string]types.AttributeValue{
		":sid":     &types.AttributeValueMemberS{Value: session.ID},
		":now":     &types.AttributeValueMemberS{Value: formatTime(at)},
		":pending": &types.AttributeValueMemberS{Value: string(models.PaymentStatusPending)},
	}
	update := "SET session_id = :sid, updated_at = :now"
	if session.URL != "" {
		update += ", checkout_url = :url"
		values[":url"] = &types.AttributeValueMemberS{Value: session.URL}
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.paymentsTable),
		Key:                       key,
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(payment_id) AND #status = :pending"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrConflict
		}
		return fmt.Errorf("dynamodb UpdateItem failed: %w", err)
	}
	return nil
}

// Settle issues one TransactWriteItems call: a conditional status update on
// the payment and a conditional put of the ledger entry.
func (d *DynamoAdapter) Settle(ctx context.Context, s Settlement) error {
	if s.Transaction == nil {
		return errors.New("settlement without transaction")
	}
	key, err := attributevalue.MarshalMap(map[string]string{"payment_id": s.PaymentID})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	txItem, err := attributevalue.MarshalMap(toDDBTransaction(s.Transaction))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	values := map[string]types.AttributeValue{
		":from": &types.AttributeValueMemberS{Value: string(s.From)},
		":to":   &types.AttributeValueMemberS{Value: string(s.To)},
		":now":  &types.AttributeValueMemberS{Value: formatTime(s.At)},
	}
	update := "SET #status = :to, updated_at = :now"
	switch s.To {
	case models.PaymentStatusPaid:
		update += ", paid_at = :now"
		if s.ProcessorPaymentID != "" {
			update += ", processor_payment_id = :ppid"
			values[":ppid"] = &types.AttributeValueMemberS{Value: s.ProcessorPaymentID}
		}
	case models.PaymentStatusRefunded:
		update += ", refunded_at = :now"
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(d.paymentsTable),
				Key:                       key,
				UpdateExpression:          aws.String(update),
				ConditionExpression:       aws.String("#status = :from"),
				ExpressionAttributeNames:  map[string]string{"#status": "status"},
				ExpressionAttributeValues: values,
			}},
			{Put: &types.Put{
				TableName:           aws.String(d.transactionsTable),
				Item:                txItem,
				ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrConflict
		}
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

func (d *DynamoAdapter) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"transaction_id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(d.transactionsTable), Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dt ddbTransaction
	if err := attributevalue.UnmarshalMap(out.Item, &dt); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	tx := dt.toModel()
	return &tx, nil
}

func (d *DynamoAdapter) ListTransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.transactionsTable),
		IndexName:              aws.String(EnrollmentIndex),
		KeyConditionExpression: aws.String("enrollment_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: enrollmentID},
		},
	}
	var out []models.Transaction
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}
		var rows []ddbTransaction
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}
		for _, r := range rows {
			out = append(out, r.toModel())
		}
	}
	return out, nil
}

// ImportTransaction writes an existing ledger entry without touching its
// payment. Used by the store migration; an existing id yields ErrDuplicate.
func (d *DynamoAdapter) ImportTransaction(ctx context.Context, tx *models.Transaction) error {
	item, err := attributevalue.MarshalMap(toDDBTransaction(tx))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.transactionsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}
