// Package observability provides metrics, tracing, and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrMode     = "mode"
	attrOutcome  = "outcome"
	attrVerified = "verified"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with dynamic segments to reduce cardinality
	// /v1/generations/current/files/solver.zip -> /v1/generations/current/files/{filename}
	normalized := normalizePath(path)
	return attribute.String(attrPath, normalized)
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func modeAttr(mode string) attribute.KeyValue {
	return attribute.String(attrMode, mode)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func verifiedAttr(verified bool) attribute.KeyValue {
	return attribute.Bool(attrVerified, verified)
}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	const filesPrefix = "/v1/generations/current/files/"
	if len(path) > len(filesPrefix) && strings.HasPrefix(path, filesPrefix) {
		return filesPrefix + "{filename}"
	}
	const flagsPrefix = "/v1/session/flags/"
	if len(path) > len(flagsPrefix) && strings.HasPrefix(path, flagsPrefix) {
		return flagsPrefix + "{key}"
	}
	return path
}

// WithMethod returns a metric option with the method attribute.
func WithMethod(method string) metric.MeasurementOption {
	return metric.WithAttributes(methodAttr(method))
}

// WithPath returns a metric option with the path attribute.
func WithPath(path string) metric.MeasurementOption {
	return metric.WithAttributes(pathAttr(path))
}

// WithStatus returns a metric option with the status attribute.
func WithStatus(code int) metric.MeasurementOption {
	return metric.WithAttributes(statusAttr(code))
}

// WithOutcome returns a metric option with the outcome attribute.
func WithOutcome(outcome string) metric.MeasurementOption {
	return metric.WithAttributes(outcomeAttr(outcome))
}
