//go:build !hwenc

package config

const hwEncoder = 0
