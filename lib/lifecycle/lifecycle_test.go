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
	"sync"
	"testing"
	"time"

	"github.com/gravitational/podinfo/lib/constants"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/gravitational/trace"
	"gopkg.in/check.v1"
)

func TestLifecycle(t *testing.T) { check.TestingT(t) }

type LifecycleSuite struct {
	queue *mockQueue
	group *mockAutoScaling
	lb    *mockLoadBalancer
}

var _ = check.Suite(&LifecycleSuite{})

func (s *LifecycleSuite) SetUpTest(c *check.C) {
	s.queue = newMockQueue("queue-1")
	s.group = newMockAutoScaling()
	s.lb = newMockLoadBalancer()
}

// TestInstanceTerminating verifies a terminating instance is deregistered
// from the target group, waited on until drained and its lifecycle action
// completed.
func (s *LifecycleSuite) TestInstanceTerminating(c *check.C) {
	s.lb.setStates(elbv2.TargetHealthStateEnumDraining, elbv2.TargetHealthStateEnumUnused)
	agent := s.newAgent(c)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go agent.ProcessEvents(ctx)

	event := HookEvent{
		InstanceID:           "instance-1",
		Type:                 constants.InstanceTerminating,
		Token:                "token-1",
		AutoScalingGroupName: "group-1",
		LifecycleHookName:    "hook-1",
	}
	s.send(c, "message-1", event)

	s.expectDeleted(c, "message-1")

	deregistered := s.expectDeregistered(c)
	c.Assert(aws.StringValue(deregistered.TargetGroupArn), check.Equals, agent.TargetGroupARN)
	c.Assert(aws.StringValue(deregistered.Targets[0].Id), check.Equals, event.InstanceID)

	completed := s.expectCompleted(c)
	c.Assert(aws.StringValue(completed.InstanceId), check.Equals, event.InstanceID)
	c.Assert(aws.StringValue(completed.LifecycleActionToken), check.Equals, event.Token)
	c.Assert(aws.StringValue(completed.LifecycleHookName), check.Equals, event.LifecycleHookName)
	c.Assert(aws.StringValue(completed.LifecycleActionResult), check.Equals, constants.LifecycleActionContinue)
}

// TestInstanceLaunching verifies a launching instance completes its
// lifecycle action once target group health checks pass, without being
// deregistered.
func (s *LifecycleSuite) TestInstanceLaunching(c *check.C) {
	s.lb.setStates(elbv2.TargetHealthStateEnumInitial, elbv2.TargetHealthStateEnumHealthy)
	agent := s.newAgent(c)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go agent.ProcessEvents(ctx)

	s.send(c, "message-1", HookEvent{
		InstanceID:           "instance-1",
		Type:                 constants.InstanceLaunching,
		Token:                "token-1",
		AutoScalingGroupName: "group-1",
		LifecycleHookName:    "hook-1",
	})

	s.expectDeleted(c, "message-1")

	completed := s.expectCompleted(c)
	c.Assert(aws.StringValue(completed.InstanceId), check.Equals, "instance-1")
	c.Assert(aws.StringValue(completed.LifecycleActionResult), check.Equals, constants.LifecycleActionContinue)
	c.Assert(len(s.lb.deregisteredC), check.Equals, 0)
}

// TestDiscardsUnsupportedEvents verifies events with unknown transitions
// are deleted from the queue without acting on them.
func (s *LifecycleSuite) TestDiscardsUnsupportedEvents(c *check.C) {
	agent := s.newAgent(c)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go agent.ProcessEvents(ctx)

	s.send(c, "message-1", HookEvent{
		InstanceID: "instance-1",
		Type:       "autoscaling:TEST_NOTIFICATION",
	})

	s.expectDeleted(c, "message-1")
	c.Assert(len(s.group.completedC), check.Equals, 0)
	c.Assert(len(s.lb.deregisteredC), check.Equals, 0)
}

// TestTreatsMissingTargetAsDrained verifies an instance that is gone from
// the target group counts as drained.
func (s *LifecycleSuite) TestTreatsMissingTargetAsDrained(c *check.C) {
	s.lb.gone = true
	agent := s.newAgent(c)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go agent.ProcessEvents(ctx)

	s.send(c, "message-1", HookEvent{
		InstanceID:           "instance-1",
		Type:                 constants.InstanceTerminating,
		Token:                "token-1",
		AutoScalingGroupName: "group-1",
		LifecycleHookName:    "hook-1",
	})

	s.expectDeregistered(c)
	s.expectCompleted(c)
}

// TestSendsHeartbeatsWhileDraining verifies the lifecycle action is kept
// alive with heartbeats while connections drain, and that slow drains are
// completed once the drain timeout expires.
func (s *LifecycleSuite) TestSendsHeartbeatsWhileDraining(c *check.C) {
	s.lb.setStates(elbv2.TargetHealthStateEnumDraining)
	agent, err := New(Config{
		QueueURL:          s.queue.url,
		TargetGroupARN:    "arn:aws:elasticloadbalancing:us-west-2:123456789012:targetgroup/podinfo/1234",
		Queue:             s.queue,
		AutoScaling:       s.group,
		LoadBalancer:      s.lb,
		HeartbeatInterval: 10 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		DrainTimeout:      100 * time.Millisecond,
	})
	c.Assert(err, check.IsNil)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go agent.ProcessEvents(ctx)

	event := HookEvent{
		InstanceID:           "instance-1",
		Type:                 constants.InstanceTerminating,
		Token:                "token-1",
		AutoScalingGroupName: "group-1",
		LifecycleHookName:    "hook-1",
	}
	s.send(c, "message-1", event)

	select {
	case heartbeat := <-s.group.heartbeatsC:
		c.Assert(aws.StringValue(heartbeat.InstanceId), check.Equals, event.InstanceID)
		c.Assert(aws.StringValue(heartbeat.LifecycleActionToken), check.Equals, event.Token)
	case <-time.After(time.Second):
		c.Fatalf("timeout waiting for a heartbeat")
	}

	// the instance never leaves the draining state so the action is
	// completed on drain timeout
	s.expectCompleted(c)
}

func (s *LifecycleSuite) newAgent(c *check.C) *Agent {
	agent, err := New(Config{
		QueueURL:       s.queue.url,
		TargetGroupARN: "arn:aws:elasticloadbalancing:us-west-2:123456789012:targetgroup/podinfo/1234",
		Queue:          s.queue,
		AutoScaling:    s.group,
		LoadBalancer:   s.lb,
		PollInterval:   time.Millisecond,
	})
	c.Assert(err, check.IsNil)
	c.Assert(agent, check.NotNil)
	return agent
}

func (s *LifecycleSuite) send(c *check.C, receipt string, event HookEvent) {
	select {
	case s.queue.messagesC <- &message{receipt: receipt, body: mustMarshalHook(event)}:
	case <-time.After(time.Second):
		c.Fatalf("timeout sending the hook event")
	}
}

func (s *LifecycleSuite) expectDeleted(c *check.C, receipt string) {
	select {
	case m := <-s.queue.deletedC:
		c.Assert(aws.StringValue(m.ReceiptHandle), check.Equals, receipt)
	case <-time.After(time.Second):
		c.Fatalf("timeout waiting for the message deletion")
	}
}

func (s *LifecycleSuite) expectDeregistered(c *check.C) *elbv2.DeregisterTargetsInput {
	select {
	case input := <-s.lb.deregisteredC:
		return input
	case <-time.After(time.Second):
		c.Fatalf("timeout waiting for the target deregistration")
	}
	return nil
}

func (s *LifecycleSuite) expectCompleted(c *check.C) *autoscaling.CompleteLifecycleActionInput {
	select {
	case input := <-s.group.completedC:
		return input
	case <-time.After(time.Second):
		c.Fatalf("timeout waiting for the lifecycle action completion")
	}
	return nil
}

type message struct {
	receipt string
	body    string
}

type mockQueue struct {
	url       string
	messagesC chan *message
	deletedC  chan *sqs.DeleteMessageInput
}

func newMockQueue(url string) *mockQueue {
	return &mockQueue{
		url:       url,
		messagesC: make(chan *message, 10),
		deletedC:  make(chan *sqs.DeleteMessageInput, 10),
	}
}

func (q *mockQueue) ReceiveMessageWithContext(ctx aws.Context, input *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	select {
	case m := <-q.messagesC:
		return &sqs.ReceiveMessageOutput{
			Messages: []*sqs.Message{
				{
					Body:          aws.String(m.body),
					ReceiptHandle: aws.String(m.receipt),
				},
			},
		}, nil
	case <-time.After(time.Second * time.Duration(aws.Int64Value(input.WaitTimeSeconds))):
		return &sqs.ReceiveMessageOutput{}, nil
	case <-ctx.Done():
		return nil, trace.ConnectionProblem(nil, "context is terminating")
	}
}

func (q *mockQueue) DeleteMessageWithContext(ctx aws.Context, input *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error) {
	select {
	case q.deletedC <- input:
		return &sqs.DeleteMessageOutput{}, nil
	case <-ctx.Done():
		return nil, trace.ConnectionProblem(nil, "context is terminating")
	default:
		return nil, trace.BadParameter("blocked on send in DeleteMessageWithContext")
	}
}

type mockAutoScaling struct {
	completedC  chan *autoscaling.CompleteLifecycleActionInput
	heartbeatsC chan *autoscaling.RecordLifecycleActionHeartbeatInput
}

func newMockAutoScaling() *mockAutoScaling {
	return &mockAutoScaling{
		completedC:  make(chan *autoscaling.CompleteLifecycleActionInput, 10),
		heartbeatsC: make(chan *autoscaling.RecordLifecycleActionHeartbeatInput, 100),
	}
}

func (m *mockAutoScaling) RecordLifecycleActionHeartbeatWithContext(ctx aws.Context, input *autoscaling.RecordLifecycleActionHeartbeatInput, opts ...request.Option) (*autoscaling.RecordLifecycleActionHeartbeatOutput, error) {
	select {
	case m.heartbeatsC <- input:
		return &autoscaling.RecordLifecycleActionHeartbeatOutput{}, nil
	case <-ctx.Done():
		return nil, trace.ConnectionProblem(nil, "context is terminating")
	default:
		return nil, trace.BadParameter("blocked on send in RecordLifecycleActionHeartbeatWithContext")
	}
}

func (m *mockAutoScaling) CompleteLifecycleActionWithContext(ctx aws.Context, input *autoscaling.CompleteLifecycleActionInput, opts ...request.Option) (*autoscaling.CompleteLifecycleActionOutput, error) {
	select {
	case m.completedC <- input:
		return &autoscaling.CompleteLifecycleActionOutput{}, nil
	case <-ctx.Done():
		return nil, trace.ConnectionProblem(nil, "context is terminating")
	default:
		return nil, trace.BadParameter("blocked on send in CompleteLifecycleActionWithContext")
	}
}

// mockLoadBalancer reports the configured target health states in order,
// repeating the last one once the sequence runs out. With gone set the
// target is missing from the target group.
type mockLoadBalancer struct {
	mu            sync.Mutex
	states        []string
	gone          bool
	deregisteredC chan *elbv2.DeregisterTargetsInput
}

func newMockLoadBalancer() *mockLoadBalancer {
	return &mockLoadBalancer{
		deregisteredC: make(chan *elbv2.DeregisterTargetsInput, 10),
	}
}

func (m *mockLoadBalancer) setStates(states ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = states
}

func (m *mockLoadBalancer) DeregisterTargetsWithContext(ctx aws.Context, input *elbv2.DeregisterTargetsInput, opts ...request.Option) (*elbv2.DeregisterTargetsOutput, error) {
	select {
	case m.deregisteredC <- input:
		return &elbv2.DeregisterTargetsOutput{}, nil
	case <-ctx.Done():
		return nil, trace.ConnectionProblem(nil, "context is terminating")
	default:
		return nil, trace.BadParameter("blocked on send in DeregisterTargetsWithContext")
	}
}

func (m *mockLoadBalancer) DescribeTargetHealthWithContext(ctx aws.Context, input *elbv2.DescribeTargetHealthInput, opts ...request.Option) (*elbv2.DescribeTargetHealthOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gone {
		return &elbv2.DescribeTargetHealthOutput{}, nil
	}
	state := elbv2.TargetHealthStateEnumUnused
	if len(m.states) > 0 {
		state = m.states[0]
		if len(m.states) > 1 {
			m.states = m.states[1:]
		}
	}
	return &elbv2.DescribeTargetHealthOutput{
		TargetHealthDescriptions: []*elbv2.TargetHealthDescription{
			{
				TargetHealth: &elbv2.TargetHealth{
					State: aws.String(state),
				},
			},
		},
	}, nil
}
