package jit

import (
	"runtime"

	"github.com/llir/llvm/ir"
	"github.com/sirupsen/logrus"
)

// Pipeline is the fixed, ordered pass sequence applied to the loop function.
// The sequence follows Julia's JIT pass list; the interleaved instruction
// combines clean up after each major transform. The order is load-bearing and
// must not be rearranged.
func Pipeline(m *ir.Module) []Pass {
	return []Pass{
		targetMachinePass(m),
		passFunc{"simplifycfg", simplifyCFG},
		mem2reg{},
		passFunc{"instcombine", instCombine},
		inspectOnly("sroa"),
		passFunc{"instcombine", instCombine},
		inspectOnly("jump-threading"),
		passFunc{"instcombine", instCombine},
		inspectOnly("reassociate"),
		passFunc{"early-cse", localCSE},
		inspectOnly("loop-idiom"),
		inspectOnly("loop-rotate"),
		inspectOnly("licm"),
		inspectOnly("loop-unswitch"),
		passFunc{"instcombine", instCombine},
		inspectOnly("indvars"),
		passFunc{"loop-deletion", loopDeletion},
		inspectOnly("loop-unroll"),
		inspectOnly("loop-vectorize"),
		passFunc{"instcombine", instCombine},
		passFunc{"gvn", localCSE},
		inspectOnly("memcpyopt"),
		passFunc{"sccp", sccp},
		passFunc{"instcombine", instCombine},
		inspectOnly("slp-vectorizer"),
		passFunc{"adce", aggressiveDCE},
		passFunc{"instcombine", instCombine},
	}
}

// Optimize runs the full pipeline over the loop function.
func Optimize(m *ir.Module, f *ir.Func) {
	for _, pass := range Pipeline(m) {
		changed := pass.Run(f)
		logrus.WithFields(logrus.Fields{
			"pass":    pass.Name(),
			"changed": changed,
		}).Trace("optimization pass")
	}
}

// targetMachinePass stamps the module with the native target so later stages
// and the IR dump reflect the machine being compiled for.
func targetMachinePass(m *ir.Module) Pass {
	return passFunc{name: "target-machine", run: func(*ir.Func) bool {
		if m.TargetTriple != "" {
			return false
		}
		m.TargetTriple = nativeTriple()
		if layout, ok := dataLayouts[runtime.GOARCH]; ok {
			m.DataLayout = layout
		}
		return true
	}}
}

var dataLayouts = map[string]string{
	"amd64": "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128",
	"arm64": "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128",
}

var tripleArch = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "i386",
}

func nativeTriple() string {
	arch, ok := tripleArch[runtime.GOARCH]
	if !ok {
		arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-" + runtime.GOOS + "-gnu"
	}
}
