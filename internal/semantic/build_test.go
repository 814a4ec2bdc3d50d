package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/config"
)

func exec(executable string, args ...string) capture.Execution {
	return capture.Execution{
		Executable: executable,
		Arguments:  append([]string{executable}, args...),
		WorkingDir: "/src",
	}
}

func recognizeCall(t *testing.T, b *Build, ex capture.Execution) *CompilerCall {
	t.Helper()
	sem, err := b.Recognize(ex)
	require.NoError(t, err)
	call, ok := sem.(*CompilerCall)
	require.True(t, ok, "want CompilerCall, got %T", sem)
	return call
}

func TestRecognize_CompilerNames(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	recognized := []string{
		"/usr/bin/cc",
		"/usr/bin/gcc",
		"/usr/bin/g++",
		"/usr/bin/c++",
		"/usr/local/bin/clang",
		"/usr/local/bin/clang++",
		"/usr/bin/gcc-12",
		"/usr/bin/clang++-17",
		"/opt/cross/arm-linux-gnueabi-gcc",
		"/usr/bin/gfortran",
	}
	for _, path := range recognized {
		sem, err := b.Recognize(exec(path, "-c", "main.c"))
		require.NoError(t, err, path)
		assert.NotNil(t, sem, "%s should be recognized", path)
	}

	unrecognized := []string{
		"/usr/bin/make",
		"/usr/bin/ld",
		"/usr/bin/ar",
		"/usr/bin/python3",
		"/usr/bin/gcov",
		"/usr/bin/install",
	}
	for _, path := range unrecognized {
		sem, err := b.Recognize(exec(path, "main.c"))
		require.NoError(t, err, path)
		assert.Nil(t, sem, "%s should not be recognized", path)
	}
}

func TestRecognize_SimpleCompile(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/cc", "-Wall", "-Iinclude", "-DNDEBUG", "-c", "main.c", "-o", "main.o"))
	assert.Equal(t, []string{"main.c"}, call.Sources)
	assert.Equal(t, "main.o", call.Output)
	assert.Equal(t, []string{"-Wall", "-Iinclude", "-DNDEBUG"}, call.Flags)

	entries := call.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "/src/main.c", entries[0].File)
	assert.Equal(t, "/src", entries[0].Directory)
	assert.Equal(t, "/src/main.o", entries[0].Output)
	assert.Equal(t, []string{"/usr/bin/cc", "-Wall", "-Iinclude", "-DNDEBUG", "-c", "main.c", "-o", "main.o"}, entries[0].Arguments)
}

func TestRecognize_MultiSourceExpansion(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/cc", "a.c", "b.c", "-o", "prog"))
	entries := call.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "/src/a.c", entries[0].File)
	assert.Equal(t, "/src/b.c", entries[1].File)
	for _, e := range entries {
		assert.Equal(t, "/src", e.Directory)
		assert.Equal(t, "/src/prog", e.Output)
	}
	// Same flags, differing only in the source argument.
	assert.Equal(t, entries[0].Arguments[:1], entries[1].Arguments[:1])
}

func TestRecognize_LinkOnly(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/cc", "a.o", "b.o", "-o", "prog", "-lm"))
	assert.Empty(t, call.Sources)
	assert.Empty(t, call.Entries())
}

func TestRecognize_QueryCalls(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	for _, args := range [][]string{
		{"--version"},
		{"--help"},
		{"-###", "-c", "main.c"},
		{"-dumpmachine"},
		{"-E", "main.c"},
	} {
		sem, err := b.Recognize(exec("/usr/bin/gcc", args...))
		require.NoError(t, err)
		_, ok := sem.(*QueryCall)
		assert.True(t, ok, "args %v should be a query, got %T", args, sem)
	}
}

func TestRecognize_DropsDependencyFlags(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/gcc",
		"-MMD", "-MF", "main.d", "-MT", "main.o", "-Wall", "-c", "main.c"))
	assert.Equal(t, []string{"-Wall"}, call.Flags)
}

func TestRecognize_SeparateValueFlags(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/g++",
		"-x", "c++", "-I", "include", "-isystem", "/opt/include", "-c", "gen.cc"))
	assert.Equal(t, []string{"-x", "c++", "-I", "include", "-isystem", "/opt/include"}, call.Flags)
	assert.Equal(t, []string{"gen.cc"}, call.Sources)
}

func TestRecognize_ConfiguredCompiler(t *testing.T) {
	b := NewBuild(config.Compilation{
		CompilersToRecognize: []config.CompilerWrapper{{
			Executable:    "/opt/vendor/bin/occ",
			FlagsToAdd:    []string{"--target=riscv64"},
			FlagsToRemove: []string{"-fvendor-extension"},
		}},
	}, nil)

	call := recognizeCall(t, b, exec("/opt/vendor/bin/occ", "-fvendor-extension", "-O2", "-c", "main.c"))
	assert.Equal(t, []string{"-O2", "--target=riscv64"}, call.Flags)
}

func TestRecognize_CompilerFromEnvironment(t *testing.T) {
	b := NewBuild(config.Compilation{}, map[string]string{"CC": "/opt/toolchain/bin/mycc"})

	call := recognizeCall(t, b, exec("/opt/toolchain/bin/mycc", "-c", "main.c"))
	assert.Equal(t, []string{"main.c"}, call.Sources)

	// Unrelated executables stay unrecognized.
	sem, err := b.Recognize(exec("/usr/bin/make", "all"))
	require.NoError(t, err)
	assert.Nil(t, sem)
}

func TestRecognize_UnwrapsLaunchers(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)

	call := recognizeCall(t, b, exec("/usr/bin/ccache", "gcc", "-c", "main.c", "-o", "main.o"))
	assert.Equal(t, "gcc", call.Compiler)
	assert.Equal(t, []string{"main.c"}, call.Sources)

	// A launcher with no wrapped command is a query, not a failure.
	sem, err := b.Recognize(exec("/usr/bin/ccache"))
	require.NoError(t, err)
	_, ok := sem.(*QueryCall)
	assert.True(t, ok, "got %T", sem)
}

func TestRecognize_Idempotent(t *testing.T) {
	b := NewBuild(config.Compilation{}, nil)
	ex := exec("/usr/bin/cc", "-Wall", "a.c", "b.c", "-o", "prog")

	first := recognizeCall(t, b, ex).Entries()
	second := recognizeCall(t, b, ex).Entries()
	assert.Equal(t, first, second)
}
