package adapters

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/ikollipara/concordia-ai/internal/llm"
	"github.com/ikollipara/concordia-ai/internal/tokens"
)

const (
	bedrockService     = "bedrock"
	bedrockHostPattern = "https://bedrock-runtime.%s.amazonaws.com/openai/v1"
)

// BedrockOptions parameterizes the Bedrock backend.
type BedrockOptions struct {
	Region    string // AWS region; falls back to AWS_REGION / us-east-1
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Counter   *tokens.Counter
}

// NewBedrockAdapter creates a backend for Bedrock's OpenAI-compatible
// chat-completions endpoint. The wire protocol is identical to OpenAI's, so
// it reuses OpenAIAdapter with a SigV4 signing transport in place of a
// bearer credential. AWS credentials are loaded from the default chain on
// the first Generate call, not here, so a misconfigured environment fails
// at use time the same way a missing API key does.
func NewBedrockAdapter(opts BedrockOptions) *OpenAIAdapter {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	a := NewOpenAIAdapter(OpenAIOptions{
		Model:     opts.Model,
		BaseURL:   fmt.Sprintf(bedrockHostPattern, region),
		MaxTokens: opts.MaxTokens,
		Timeout:   opts.Timeout,
		Counter:   opts.Counter,
		HTTPClient: &http.Client{
			Transport: &signingTransport{region: region, signer: v4.NewSigner()},
		},
	})
	a.name = "bedrock"
	a.requireKey = false
	return a
}

// signingTransport signs outgoing requests with AWS SigV4 for the
// bedrock-runtime service. Credentials come from the standard AWS chain
// (environment, shared credentials file, IAM roles) and are resolved
// lazily on the first request.
type signingTransport struct {
	region string
	signer *v4.Signer

	loadOnce sync.Once
	loadErr  error
	creds    aws.CredentialsProvider
}

func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	t.loadOnce.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(t.region))
		if err != nil {
			t.loadErr = &llm.ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("failed to load AWS config: %v", err)}
			return
		}
		t.creds = cfg.Credentials
	})
	if t.loadErr != nil {
		return nil, t.loadErr
	}

	creds, err := t.creds.Retrieve(ctx)
	if err != nil {
		return nil, &llm.ConfigError{Field: "llm.provider", Reason: fmt.Sprintf("no AWS credentials available: %v", err)}
	}

	// SigV4 needs the payload hash; re-read the body via GetBody so the
	// original request stays replayable.
	var body []byte
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to re-read request body: %w", err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to re-read request body: %w", err)
		}
	}

	signed := req.Clone(ctx)
	signed.Body = io.NopCloser(bytes.NewReader(body))
	payloadHash := fmt.Sprintf("%x", sha256.Sum256(body))

	if err := t.signer.SignHTTP(ctx, creds, signed, payloadHash, bedrockService, t.region, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	return http.DefaultTransport.RoundTrip(signed)
}
