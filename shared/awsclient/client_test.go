package awsclient

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDynamoDB(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}

	local := NewDynamoDB(awsCfg, "http://localhost:8000")
	require.NotNil(t, local.Options().BaseEndpoint)
	assert.Equal(t, "http://localhost:8000", *local.Options().BaseEndpoint)

	assert.Nil(t, NewDynamoDB(awsCfg, "").Options().BaseEndpoint)
}

func TestNewBedrockRuntime(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}

	assert.Equal(t, "us-west-2", NewBedrockRuntime(awsCfg, "us-west-2").Options().Region)
	assert.Equal(t, "us-east-1", NewBedrockRuntime(awsCfg, "").Options().Region)
}
