// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Command sigv4sign signs an HTTP request with AWS Signature Version 4
// and prints the resulting Authorization header (or presigned query)
// and canonical request, demonstrating the signing package end to end.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/clock"
	"github.com/nishisan-dev/go-protocol-core/internal/config"
	"github.com/nishisan-dev/go-protocol-core/internal/logging"
	"github.com/nishisan-dev/go-protocol-core/signing"
)

func main() {
	configPath := flag.String("config", "", "path to client config file (region/service); overrides -region/-service")
	region := flag.String("region", "us-east-1", "signing region")
	service := flag.String("service", "s3", "signing service")
	method := flag.String("method", "GET", "HTTP method")
	rawURL := flag.String("url", "", "request URL to sign")
	accessKeyID := flag.String("access-key-id", os.Getenv("AWS_ACCESS_KEY_ID"), "access key id")
	secretAccessKey := flag.String("secret-access-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "secret access key")
	sessionToken := flag.String("session-token", os.Getenv("AWS_SESSION_TOKEN"), "session token (optional)")
	presign := flag.Bool("query", false, "produce a presigned URL (QUERY signature placement) instead of a headers-signed request")
	flag.Parse()

	logger, logCloser := logging.NewLogger("info", "text", "")
	defer logCloser.Close()

	if *rawURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		os.Exit(1)
	}

	if *configPath != "" {
		cfg, err := config.LoadClientConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		*region = cfg.Region
		*service = cfg.Service
	}

	u, err := url.Parse(*rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing URL: %v\n", err)
		os.Exit(1)
	}

	req := &signing.Request{
		Method:  strings.ToUpper(*method),
		Path:    u.Path,
		Query:   u.Query(),
		Headers: map[string][]string{"Host": {u.Host}},
	}

	sigCfg := signing.Config{
		Region:            *region,
		Service:           *service,
		SigningDate:       clock.System{},
		HashSpecification: signing.HashSpecification{Kind: signing.EmptyBody},
	}
	if *presign {
		sigCfg.SignatureType = signing.Query
		sigCfg.ExpiresAfterSec = 900
	}

	creds := signing.Credentials{
		AccessKeyID:     *accessKeyID,
		SecretAccessKey: *secretAccessKey,
		SessionToken:    *sessionToken,
	}

	result, err := signing.Sign(req, sigCfg, creds)
	if err != nil {
		logger.Error("signing failed", "error", err)
		os.Exit(1)
	}

	if *presign {
		u.RawQuery = req.Query.Encode()
		fmt.Printf("presigned url: %s\n", u.String())
	} else if auth, ok := req.Headers["Authorization"]; ok {
		fmt.Printf("Authorization: %s\n", auth[0])
	}
	fmt.Printf("canonical request:\n%s\n", result.CanonicalRequest)
	fmt.Printf("string to sign:\n%s\n", result.StringToSign)
	fmt.Printf("signature: %s\n", result.Signature)
}
