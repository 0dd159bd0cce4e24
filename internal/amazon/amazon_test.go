package amazon

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/sqlpulse/internal/credentials"
	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/targets"
)

type fakeSSM struct {
	input *ssm.GetParameterInput
	value *string
	err   error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: f.value}}, nil
}

func TestParameterStoreGetParameter(t *testing.T) {
	client := &fakeSSM{value: aws.String(`{"dbConnections":[]}`)}
	store := NewParameterStoreWithClient(client)

	value, err := store.GetParameter(context.Background(), "/example/SqlToCwDemo")
	require.NoError(t, err)
	require.Equal(t, `{"dbConnections":[]}`, value)
	require.Equal(t, "/example/SqlToCwDemo", aws.ToString(client.input.Name))
	require.True(t, aws.ToBool(client.input.WithDecryption))
}

func TestParameterStoreErrors(t *testing.T) {
	store := NewParameterStoreWithClient(&fakeSSM{err: &smithy.GenericAPIError{Code: "ParameterNotFound", Message: "missing"}})
	_, err := store.GetParameter(context.Background(), "/missing")
	require.ErrorIs(t, err, targets.ErrParameterNotFound)

	denied := &smithy.GenericAPIError{Code: "AccessDeniedException"}
	store = NewParameterStoreWithClient(&fakeSSM{err: denied})
	_, err = store.GetParameter(context.Background(), "/denied")
	require.ErrorIs(t, err, denied)
	require.False(t, errors.Is(err, targets.ErrParameterNotFound))

	store = NewParameterStoreWithClient(&fakeSSM{})
	_, err = store.GetParameter(context.Background(), "/empty")
	require.ErrorIs(t, err, targets.ErrParameterNotFound)
}

type fakeSecrets struct {
	out *secretsmanager.GetSecretValueOutput
	err error
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestSecretStoreGetSecret(t *testing.T) {
	store := NewSecretStoreWithClient(&fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"username":"u","password":"p"}`),
	}})

	cred, err := credentials.NewResolver(store).Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "u", cred.Username)

	store = NewSecretStoreWithClient(&fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
		SecretBinary: []byte(`{"username":"v","password":"q"}`),
	}})
	payload, err := store.GetSecret(context.Background(), "s2")
	require.NoError(t, err)
	require.Contains(t, payload, `"v"`)
}

func TestSecretStoreNotFound(t *testing.T) {
	store := NewSecretStoreWithClient(&fakeSecrets{err: &smithy.GenericAPIError{Code: "ResourceNotFoundException"}})
	_, err := store.GetSecret(context.Background(), "missing")
	require.ErrorIs(t, err, credentials.ErrSecretNotFound)

	store = NewSecretStoreWithClient(&fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}})
	_, err = store.GetSecret(context.Background(), "empty")
	require.ErrorIs(t, err, credentials.ErrSecretNotFound)
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestMetricSinkPut(t *testing.T) {
	client := &fakeCloudWatch{}
	sink := NewMetricSinkWithClient(client)
	require.True(t, sink.RequiresNonEmpty())

	err := sink.Put(context.Background(), "TestNamespace", []models.MetricSample{
		{Name: "TestMetric", Unit: models.UnitCount, Value: 42, Dimensions: map[string]string{"server": "h1", "database": "d1"}},
		{Name: "Other", Value: 1},
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	require.Equal(t, "TestNamespace", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)

	first := in.MetricData[0]
	require.Equal(t, "TestMetric", aws.ToString(first.MetricName))
	require.Equal(t, cwtypes.StandardUnitCount, first.Unit)
	require.Equal(t, 42.0, aws.ToFloat64(first.Value))
	require.Equal(t, []cwtypes.Dimension{
		{Name: aws.String("database"), Value: aws.String("d1")},
		{Name: aws.String("server"), Value: aws.String("h1")},
	}, first.Dimensions)

	require.Equal(t, cwtypes.StandardUnitNone, in.MetricData[1].Unit)
}

func TestMetricSinkRejection(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "Throttling"}
	err := NewMetricSinkWithClient(&fakeCloudWatch{err: throttled}).Put(context.Background(), "ns", []models.MetricSample{{Name: "m"}})
	require.ErrorIs(t, err, throttled)
	require.Equal(t, "Throttling", apiErrorCode(err))
}
