// Copyright 2018 Bull S.A.S. Atos Technologies - Bull, Rue Jean Jaures, B.P.68, 78340, Les Clayes-sous-Bois, France.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the gpucheck logger.
//
// It writes to stderr so that reports printed on stdout can be piped safely.
package log

import (
	"io"
	slog "log"
	"os"
	"strings"
	"sync"
)

var (
	std   = slog.New(os.Stderr, "", slog.LstdFlags)
	debug = false
	mutex sync.RWMutex
)

func init() {
	switch strings.ToUpper(os.Getenv("GPUCHECK_LOG")) {
	case "DEBUG", "1":
		debug = true
	}
}

// SetDebug enables or disables debug logging
func SetDebug(d bool) {
	mutex.Lock()
	defer mutex.Unlock()
	debug = d
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	mutex.RLock()
	defer mutex.RUnlock()
	return debug
}

// SetOutput sets the output destination for the standard logger.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetFlags sets the output flags for the standard logger.
func SetFlags(flag int) {
	std.SetFlags(flag)
}

// Print calls Output to print to the standard logger.
// Arguments are handled in the manner of fmt.Print.
func Print(v ...interface{}) {
	std.Print(append([]interface{}{"[INFO] "}, v...)...)
}

// Printf calls Output to print to the standard logger.
// Arguments are handled in the manner of fmt.Printf.
func Printf(format string, v ...interface{}) {
	std.Printf("[INFO] "+format, v...)
}

// Println calls Output to print to the standard logger.
// Arguments are handled in the manner of fmt.Println.
func Println(v ...interface{}) {
	std.Println(append([]interface{}{"[INFO]"}, v...)...)
}

// Warnf prints a warning to the standard logger.
func Warnf(format string, v ...interface{}) {
	std.Printf("[WARN] "+format, v...)
}

// Fatal is equivalent to Print() followed by a call to os.Exit(1).
func Fatal(v ...interface{}) {
	std.Fatal(append([]interface{}{"[FATAL] "}, v...)...)
}

// Fatalf is equivalent to Printf() followed by a call to os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	std.Fatalf("[FATAL] "+format, v...)
}

// Debug prints to the standard logger if debug is enabled.
// Arguments are handled in the manner of fmt.Print.
func Debug(v ...interface{}) {
	if IsDebug() {
		std.Print(append([]interface{}{"[DEBUG] "}, v...)...)
	}
}

// Debugf prints to the standard logger if debug is enabled.
// Arguments are handled in the manner of fmt.Printf.
func Debugf(format string, v ...interface{}) {
	if IsDebug() {
		std.Printf("[DEBUG] "+format, v...)
	}
}

// Debugln prints to the standard logger if debug is enabled.
// Arguments are handled in the manner of fmt.Println.
func Debugln(v ...interface{}) {
	if IsDebug() {
		std.Println(append([]interface{}{"[DEBUG]"}, v...)...)
	}
}
