// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为工作流引擎提供 TracerProvider 和 MeterProvider。
// 禁用时不连接任何外部服务，Tracer 退回全局 noop 实现。
package telemetry
