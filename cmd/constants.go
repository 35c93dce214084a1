package cmd

// DefaultProjectConfigFilename describes the default config filename looked for in the working directory.
const DefaultProjectConfigFilename = "ariadne.json"

// DebugDirFlagDescription describes the --ethdebug-dir flag, shared by the trace and simulate commands.
const DebugDirFlagDescription = "debug metadata directive: a directory, address:directory, or address:name:directory; repeatable"
