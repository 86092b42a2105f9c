// Package server hosts the service's HTTP surface: the media WebSocket
// ingress for telephony gateways and the monitoring API.
package server
