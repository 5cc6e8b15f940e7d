// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify posts presence status changes to Slack incoming
// webhooks.
//
// A [Slack] notifier drains a statuswatch subscription and sends one
// message per change whose target status is in its configured set.
// Each company may have its own webhook; companies without one fall
// back to the default webhook, and changes for companies with neither
// are dropped. Delivery is best effort: a failed post is logged and
// not retried, since a late "Ada is away" message is worse than none.
package notify
