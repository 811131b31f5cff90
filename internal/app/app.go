package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"brand-relay/handler"
	"brand-relay/internal/brand"
	"brand-relay/internal/config"
	"brand-relay/internal/cors"
	"brand-relay/internal/integrations/openai"
	"brand-relay/internal/integrations/paramstore"
	"brand-relay/internal/persona"
	"brand-relay/internal/repository"
	"brand-relay/internal/usecase"
)

// paramSource covers both the credential lookup and persona overrides.
type paramSource interface {
	openai.Getter
	persona.ParamsGetter
}

// Build wires the relay handler. AWS clients are created only when
// PARAM_PREFIX or USAGE_TABLE is configured.
func Build(ctx context.Context, cfg *config.Config) (*handler.Handler, error) {
	if cfg.ParamPrefix == "" && cfg.UsageTable == "" {
		return build(ctx, cfg, nil, nil)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}

	var params paramSource
	if cfg.ParamPrefix != "" {
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
		params = ps
	}

	var usage handler.UsageRecorder
	if cfg.UsageTable != "" {
		repo, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.UsageTable)
		if err != nil {
			return nil, fmt.Errorf("app: create usage repository: %w", err)
		}
		usage = repo
	}

	return build(ctx, cfg, params, usage)
}

func build(ctx context.Context, cfg *config.Config, params paramSource, usage handler.UsageRecorder) (*handler.Handler, error) {
	apiKey := cfg.OpenAIAPIKey
	texts := persona.Embedded()

	if params != nil {
		if apiKey == "" {
			key, err := openai.FetchAPIKey(ctx, params, cfg.TokenParameter())
			if err != nil {
				// Requests will fail with a configuration error until redeploy.
				slog.ErrorContext(ctx, "failed to load API key from parameter store", "err", err)
			}
			apiKey = key
		}
		loaded, err := persona.Load(ctx, params, cfg.ParamPrefix)
		if err != nil {
			slog.WarnContext(ctx, "using embedded persona texts", "err", err)
		}
		texts = loaded
	}
	if apiKey == "" {
		slog.WarnContext(ctx, "upstream API key not configured; chat requests will fail")
	}

	llm := openai.NewClient(
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithTimeout(cfg.UpstreamTimeout),
	)
	svc, err := usecase.NewRelayService(llm, brand.NewResolver(texts), apiKey, cfg.OpenAIModel)
	if err != nil {
		return nil, fmt.Errorf("app: create relay service: %w", err)
	}

	policy, err := cors.NewPolicy(cfg.AllowedOrigins, cors.MatchMode(cfg.CORSMatchMode))
	if err != nil {
		return nil, fmt.Errorf("app: create cors policy: %w", err)
	}

	var opts []handler.Option
	if usage != nil {
		opts = append(opts, handler.WithUsageRecorder(usage))
	}
	h, err := handler.NewHandler(svc, policy, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	return h, nil
}
