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

package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/gravitational/podinfo/lib/constants"
	"github.com/gravitational/podinfo/lib/defaults"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// HookEvent is a lifecycle hook event posted by the autoscaling group
type HookEvent struct {
	// QueueURL is the queue this event was received from
	QueueURL string `json:"-"`
	// ReceiptHandle is the SQS receipt handle
	ReceiptHandle string `json:"-"`
	// InstanceID is the EC2 instance the event is about
	InstanceID string `json:"EC2InstanceId"`
	// Type is the lifecycle transition type
	Type string `json:"LifecycleTransition"`
	// Token authorizes actions on this lifecycle event
	Token string `json:"LifecycleActionToken"`
	// AutoScalingGroupName is the name of the autoscaling group
	AutoScalingGroupName string `json:"AutoScalingGroupName"`
	// LifecycleHookName is the name of the lifecycle hook
	LifecycleHookName string `json:"LifecycleHookName"`
}

// ProcessEvents listens for events on the SQS queue that are sent by the
// autoscaling group lifecycle hooks. It returns when the context is
// canceled.
func (a *Agent) ProcessEvents(ctx context.Context) {
	a.WithField("queue", a.QueueURL).Info("Start processing events.")
	for {
		out, err := a.Queue.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(a.QueueURL),
			MaxNumberOfMessages: aws.Int64(1),
			VisibilityTimeout:   aws.Int64(defaults.LifecycleVisibilityTimeout),
			WaitTimeSeconds:     aws.Int64(int64(defaults.LifecyclePollInterval.Seconds())),
		})
		if err != nil {
			select {
			case <-ctx.Done():
				a.WithField("queue", a.QueueURL).Info("Stop processing events.")
				return
			default:
			}
			a.Errorf("Receive message error: %v.", trace.DebugReport(err))
			continue
		}
		for _, m := range out.Messages {
			a.Debugf("Got message body: %q.", aws.StringValue(m.Body))
			hook, err := unmarshalHook(aws.StringValue(m.Body))
			if err != nil {
				a.Errorf("Failed to unmarshal hook: %v.", trace.DebugReport(err))
				continue
			}
			hook.ReceiptHandle = aws.StringValue(m.ReceiptHandle)
			hook.QueueURL = a.QueueURL
			if err := a.processEvent(ctx, *hook); err != nil {
				a.Errorf("Failed to process hook: %v.", trace.DebugReport(err))
			}
		}
	}
}

func (a *Agent) processEvent(ctx context.Context, event HookEvent) error {
	a.WithField("event", event).Info("Received lifecycle event.")
	switch event.Type {
	case constants.InstanceTerminating:
		go a.drainInstance(ctx, event)

		if err := a.DeleteEvent(ctx, event); err != nil {
			return trace.Wrap(err)
		}
	case constants.InstanceLaunching:
		go a.admitInstance(ctx, event)

		if err := a.DeleteEvent(ctx, event); err != nil {
			return trace.Wrap(err)
		}
	default:
		a.Debugf("Discarding unsupported event %#v.", event)
		if err := a.DeleteEvent(ctx, event); err != nil {
			return trace.Wrap(err)
		}
		return trace.BadParameter("unsupported event: %v", event.Type)
	}
	return nil
}

// drainInstance deregisters the instance from the target group, waits for
// its in-flight connections to drain and completes the lifecycle action
// so the autoscaling group can terminate it. Heartbeats keep the hook
// open for the duration.
func (a *Agent) drainInstance(ctx context.Context, event HookEvent) {
	logger := a.WithFields(log.Fields{
		constants.FieldInstanceID: event.InstanceID,
		"asg_name":                event.AutoScalingGroupName,
	})

	heartbeatCancel := a.startHeartbeatLoop(ctx, event)
	defer heartbeatCancel()

	if err := a.deregisterTarget(ctx, event.InstanceID); err != nil {
		logger.WithError(err).Warn("Failed to deregister instance from the target group.")
	} else if err := a.waitForDrain(ctx, event.InstanceID); err != nil {
		logger.WithError(err).Warn("Instance did not finish draining.")
	} else {
		logger.Info("Instance finished draining.")
	}

	// complete regardless of the drain outcome, holding the hook open
	// past its timeout only delays the inevitable termination
	if err := a.completeLifecycle(ctx, event); err != nil {
		logger.WithError(err).Warn("Failed to complete lifecycle action.")
	}
}

// admitInstance waits for the launched instance to pass target group
// health checks before completing the lifecycle action, so scale-out
// capacity only counts once it serves traffic. Heartbeats keep the hook
// open for the duration.
func (a *Agent) admitInstance(ctx context.Context, event HookEvent) {
	logger := a.WithFields(log.Fields{
		constants.FieldInstanceID: event.InstanceID,
		"asg_name":                event.AutoScalingGroupName,
	})

	heartbeatCancel := a.startHeartbeatLoop(ctx, event)
	defer heartbeatCancel()

	if err := a.waitForHealthy(ctx, event.InstanceID); err != nil {
		logger.WithError(err).Warn("Instance did not pass health checks.")
	} else {
		logger.Info("Instance passed health checks.")
	}

	if err := a.completeLifecycle(ctx, event); err != nil {
		logger.WithError(err).Warn("Failed to complete lifecycle action.")
	}
}

// DeleteEvent deletes the SQS message associated with event
func (a *Agent) DeleteEvent(ctx context.Context, event HookEvent) error {
	a.Debugf("DeleteEvent(%v)", event.Type)
	_, err := a.Queue.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(event.QueueURL),
		ReceiptHandle: aws.String(event.ReceiptHandle),
	})
	return trace.Wrap(err)
}

// deregisterTarget removes the instance from the target group which
// switches it to the draining state
func (a *Agent) deregisterTarget(ctx context.Context, instanceID string) error {
	a.Debugf("DeregisterTarget(%v)", instanceID)
	_, err := a.LoadBalancer.DeregisterTargetsWithContext(ctx, &elbv2.DeregisterTargetsInput{
		TargetGroupArn: aws.String(a.TargetGroupARN),
		Targets: []*elbv2.TargetDescription{{
			Id: aws.String(instanceID),
		}},
	})
	return ConvertError(err)
}

// waitForDrain polls the target health of the instance until the load
// balancer reports it no longer serves connections
func (a *Agent) waitForDrain(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.DrainTimeout)
	defer cancel()
	for {
		state, err := a.targetState(ctx, instanceID)
		if err != nil {
			return trace.Wrap(err)
		}
		switch state {
		case elbv2.TargetHealthStateEnumInitial,
			elbv2.TargetHealthStateEnumHealthy,
			elbv2.TargetHealthStateEnumDraining:
			// still draining
		default:
			return nil
		}
		select {
		case <-ctx.Done():
			return trace.LimitExceeded("instance %v did not drain in %v",
				instanceID, a.DrainTimeout)
		case <-a.Clock.After(a.PollInterval):
		}
	}
}

// waitForHealthy polls the target health of the instance until the load
// balancer reports it healthy
func (a *Agent) waitForHealthy(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.DrainTimeout)
	defer cancel()
	for {
		state, err := a.targetState(ctx, instanceID)
		if err != nil {
			return trace.Wrap(err)
		}
		if state == elbv2.TargetHealthStateEnumHealthy {
			return nil
		}
		select {
		case <-ctx.Done():
			return trace.LimitExceeded("instance %v did not become healthy in %v",
				instanceID, a.DrainTimeout)
		case <-a.Clock.After(a.PollInterval):
		}
	}
}

// targetState returns the target group health state of the instance
func (a *Agent) targetState(ctx context.Context, instanceID string) (string, error) {
	out, err := a.LoadBalancer.DescribeTargetHealthWithContext(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(a.TargetGroupARN),
		Targets: []*elbv2.TargetDescription{{
			Id: aws.String(instanceID),
		}},
	})
	if err != nil {
		return "", ConvertError(err)
	}
	if len(out.TargetHealthDescriptions) == 0 || out.TargetHealthDescriptions[0].TargetHealth == nil {
		// the target is gone from the group which means it has drained
		return elbv2.TargetHealthStateEnumUnused, nil
	}
	return aws.StringValue(out.TargetHealthDescriptions[0].TargetHealth.State), nil
}

// completeLifecycle completes the lifecycle action with CONTINUE so the
// autoscaling group proceeds with the transition
func (a *Agent) completeLifecycle(ctx context.Context, event HookEvent) error {
	_, err := a.AutoScaling.CompleteLifecycleActionWithContext(ctx, &autoscaling.CompleteLifecycleActionInput{
		AutoScalingGroupName:  aws.String(event.AutoScalingGroupName),
		InstanceId:            aws.String(event.InstanceID),
		LifecycleActionToken:  aws.String(event.Token),
		LifecycleHookName:     aws.String(event.LifecycleHookName),
		LifecycleActionResult: aws.String(constants.LifecycleActionContinue),
	})
	if err != nil {
		return ConvertError(err)
	}
	a.WithField(constants.FieldInstanceID, event.InstanceID).Info("Completed lifecycle action.")
	return nil
}

// startHeartbeatLoop records lifecycle action heartbeats to keep the hook
// open while the instance drains. The returned cancel stops the loop.
func (a *Agent) startHeartbeatLoop(ctx context.Context, event HookEvent) context.CancelFunc {
	ctx, cancel := context.WithTimeout(ctx, a.EventTimeout)

	go func() {
		logger := a.WithFields(log.Fields{
			constants.FieldInstanceID: event.InstanceID,
			"asg_name":                event.AutoScalingGroupName,
		})
		for {
			select {
			case <-ctx.Done():
				logger.WithField("ctx_result", ctx.Err()).Info("Heartbeat loop exiting.")
				return
			case <-a.Clock.After(a.HeartbeatInterval):
				_, err := a.AutoScaling.RecordLifecycleActionHeartbeatWithContext(ctx,
					&autoscaling.RecordLifecycleActionHeartbeatInput{
						AutoScalingGroupName: aws.String(event.AutoScalingGroupName),
						InstanceId:           aws.String(event.InstanceID),
						LifecycleActionToken: aws.String(event.Token),
						LifecycleHookName:    aws.String(event.LifecycleHookName),
					})
				logger.WithError(err).Info("Sent lifecycle action heartbeat.")
			}
		}
	}()

	return cancel
}

func mustMarshalHook(e HookEvent) string {
	out, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func unmarshalHook(input string) (*HookEvent, error) {
	var out HookEvent
	err := json.Unmarshal([]byte(input), &out)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &out, nil
}
