/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lifecycle processes autoscaling lifecycle hook events for the
// podinfo fleet. Terminating instances are held back with heartbeats
// until their load balancer connections have drained, launching instances
// until they pass target group health checks, then the lifecycle action
// is completed so the autoscaling group can proceed.
package lifecycle

import (
	"time"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Agent processes lifecycle hook events for the autoscaling group
type Agent struct {
	// Config is the agent configuration
	Config
	*log.Entry
}

// Config is the lifecycle agent configuration
type Config struct {
	// QueueURL is the SQS queue delivering lifecycle hook notifications
	QueueURL string
	// TargetGroupARN is the load balancer target group instances drain from
	TargetGroupARN string
	// Region is the AWS region of the autoscaling group
	Region string
	// Queue is the SQS client
	Queue SQS
	// AutoScaling is the autoscaling client
	AutoScaling AutoScaling
	// LoadBalancer is the elastic load balancing client
	LoadBalancer LoadBalancing
	// Clock is used for heartbeat and drain poll intervals
	Clock clockwork.Clock
	// HeartbeatInterval is the interval between lifecycle action heartbeats
	HeartbeatInterval time.Duration
	// PollInterval is the interval between target health polls
	PollInterval time.Duration
	// EventTimeout is the maximum time to keep a lifecycle action alive
	EventTimeout time.Duration
	// DrainTimeout is the maximum time to wait for a target to drain or
	// become healthy
	DrainTimeout time.Duration
}

// CheckAndSetDefaults checks and sets default values
func (cfg *Config) CheckAndSetDefaults() error {
	if cfg.QueueURL == "" {
		return trace.BadParameter("missing parameter QueueURL")
	}
	if cfg.TargetGroupARN == "" {
		return trace.BadParameter("missing parameter TargetGroupARN")
	}
	if cfg.Queue == nil || cfg.AutoScaling == nil || cfg.LoadBalancer == nil {
		awsConfig := aws.Config{}
		if cfg.Region != "" {
			awsConfig.Region = aws.String(cfg.Region)
		}
		sess, err := session.NewSession(&awsConfig)
		if err != nil {
			return trace.Wrap(err)
		}
		if cfg.Queue == nil {
			cfg.Queue = sqs.New(sess)
		}
		if cfg.AutoScaling == nil {
			cfg.AutoScaling = autoscaling.New(sess)
		}
		if cfg.LoadBalancer == nil {
			cfg.LoadBalancer = elbv2.New(sess)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.LifecycleHeartbeatInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.DrainPollInterval
	}
	if cfg.EventTimeout == 0 {
		cfg.EventTimeout = defaults.LifecycleEventTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = defaults.DrainTimeout
	}
	return nil
}

// New returns a new lifecycle agent
func New(cfg Config) (*Agent, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Agent{
		Config: cfg,
		Entry:  log.WithFields(log.Fields{trace.Component: constants.ComponentLifecycle}),
	}, nil
}

// ConvertError converts errors specific to AWS to trace-compatible error
func ConvertError(err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case elbv2.ErrCodeTargetGroupNotFoundException, sqs.ErrCodeQueueDoesNotExist:
			return trace.NotFound(awsErr.Error(), args...)
		default:
			return trace.BadParameter(awsErr.Error(), args...)
		}
	}
	return err
}
