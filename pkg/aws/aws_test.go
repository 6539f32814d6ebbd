package aws

import (
	"context"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() sdkaws.Config {
	return sdkaws.Config{
		Region:      "sa-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDTEST", "secret", ""),
	}
}

func TestMetricsClient_DisabledSendsNothing(t *testing.T) {
	m := NewMetricsClient(testConfig(), "", false)
	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.RecordCount(context.Background(), MetricPaymentSucceeded, map[string]string{"Currency": "brl"}))
	assert.NoError(t, m.RecordValue(context.Background(), MetricCommissionMinor, 1500, nil))
	assert.NoError(t, m.RecordLatency(context.Background(), MetricHTTPLatency, time.Second, nil))
}

func TestS3ObjectStore_PresignGet(t *testing.T) {
	cfg := testConfig()
	cfg.BaseEndpoint = sdkaws.String("http://localhost:4566")
	store := NewS3ObjectStore(cfg, "praiativa-receipts")

	url, err := store.PresignGet(context.Background(), "receipts/enr-1/tx-1.json", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:4566/praiativa-receipts/receipts/enr-1/tx-1.json")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestLoadAWSConfig_Endpoint(t *testing.T) {
	t.Setenv("AWS_REGION", "sa-east-1")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)
}

func TestSNSClient_RejectsEmptyTopic(t *testing.T) {
	err := NewSNSClient(testConfig()).Publish(context.Background(), "", "payment_succeeded", []byte("{}"))
	assert.Error(t, err)
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{MessageId: sdkaws.String("msg-1")}, nil
}

func TestSNSClient_TagsEventType(t *testing.T) {
	fake := &fakeSNS{}
	client := &SNSClient{client: fake}

	require.NoError(t, client.Publish(context.Background(), "arn:aws:sns:sa-east-1:000000000000:payment-events", "payment_refunded", []byte(`{"type":"payment_refunded"}`)))
	require.Len(t, fake.inputs, 1)
	attr, ok := fake.inputs[0].MessageAttributes[EventTypeAttribute]
	require.True(t, ok)
	assert.Equal(t, "String", *attr.DataType)
	assert.Equal(t, "payment_refunded", *attr.StringValue)
	assert.Equal(t, `{"type":"payment_refunded"}`, *fake.inputs[0].Message)
}

type fakeSecrets struct {
	out   *secretsmanager.GetSecretValueOutput
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	return f.out, f.err
}

func TestSecretsClient_GetSecretMap(t *testing.T) {
	fake := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretString: sdkaws.String(`{"STRIPE_API_KEY":"sk_test_1","STRIPE_WEBHOOK_SECRET":"whsec_1","JWT_SECRET":""}`),
	}}
	client := &SecretsClient{client: fake, cache: make(map[string]map[string]string)}

	m, err := client.GetSecretMap(context.Background(), "praiativa/payment-service")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"STRIPE_API_KEY": "sk_test_1", "STRIPE_WEBHOOK_SECRET": "whsec_1"}, m)

	_, err = client.GetSecretMap(context.Background(), "praiativa/payment-service")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestSecretsClient_BinaryAndErrors(t *testing.T) {
	binary := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte(`{"STRIPE_API_KEY":"sk_bin"}`)}}
	client := &SecretsClient{client: binary, cache: make(map[string]map[string]string)}
	m, err := client.GetSecretMap(context.Background(), "bin")
	require.NoError(t, err)
	assert.Equal(t, "sk_bin", m["STRIPE_API_KEY"])

	notJSON := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String("sk_live_plain")}}
	client = &SecretsClient{client: notJSON, cache: make(map[string]map[string]string)}
	_, err = client.GetSecretMap(context.Background(), "plain")
	assert.Error(t, err)

	empty := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}}
	client = &SecretsClient{client: empty, cache: make(map[string]map[string]string)}
	_, err = client.GetSecretMap(context.Background(), "empty")
	assert.Error(t, err)
}
