// Package sizeunit parses and formats byte counts written with the b/k/m/g
// suffixes used throughout the configuration file. All units are base 1024.
package sizeunit
