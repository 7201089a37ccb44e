package storage

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/dnscache"
	"golang.org/x/sync/semaphore"

	"sheetload/internal/config"
)

const (
	dnsLookupMaxParallel    = 25
	dnsCacheRefreshInterval = 5 * time.Minute
	defaultMaxAttempts      = 5
)

var (
	sharedHTTPClientOnce sync.Once
	sharedHTTPClient     aws.HTTPClient
)

// NewAWSConfig builds the SDK configuration shared by the S3 and Redshift
// Data clients. Static keys take precedence over a named profile; with
// neither the default credential chain applies.
func NewAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return aws.Config{}, fmt.Errorf("access_key and secret_key must be set together")
	}

	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	opts = append(opts, awsconfig.WithHTTPClient(httpClient(cfg.MaxConnections)))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading AWS config: %w", err)
	}

	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}

	retryer := retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = defaultMaxAttempts
		o.MaxBackoff = 20 * time.Second
	})
	awsCfg.Retryer = func() aws.Retryer {
		// UnknownError is what the SDK reports for a 408
		return retry.AddWithErrorCodes(retryer, "UnknownError")
	}

	return awsCfg, nil
}

// httpClient returns the process-wide HTTP client for AWS calls. Lambda
// containers are reused across invocations, so DNS answers are cached and
// parallel lookups are bounded.
func httpClient(maxConnsPerHost int) aws.HTTPClient {
	sharedHTTPClientOnce.Do(func() {
		sharedHTTPClient = newHTTPClient(maxConnsPerHost)
	})
	return sharedHTTPClient
}

func newHTTPClient(maxConnsPerHost int) *awshttp.BuildableClient {
	resolver := &dnscache.Resolver{}
	go func() {
		t := time.NewTicker(dnsCacheRefreshInterval)
		defer t.Stop()
		for range t.C {
			resolver.Refresh(true)
		}
	}()

	client := awshttp.NewBuildableClient()

	if maxConnsPerHost > 0 {
		client = client.WithTransportOptions(func(tr *http.Transport) {
			tr.MaxConnsPerHost = maxConnsPerHost
		})
	}

	sem := semaphore.NewWeighted(dnsLookupMaxParallel)
	dialer := client.GetDialer()

	return client.WithTransportOptions(func(tr *http.Transport) {
		tr.DialContext = func(ctx context.Context, network, addr string) (conn net.Conn, err error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			sem.Release(1)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses for host %s", host)
			}

			for _, ip := range ips {
				conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					break
				}
			}
			return conn, err
		}
	})
}
