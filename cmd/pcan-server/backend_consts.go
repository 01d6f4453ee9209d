package main

import "time"

const (
	backendPCAN      = "pcan"
	backendSocketCAN = "socketcan"
	backendSerial    = "serial"
)

const (
	txQueueSize  = 1024 // capacity of async TX ring
	rxBackoffMin = 20 * time.Millisecond
	rxBackoffMax = 500 * time.Millisecond
)
