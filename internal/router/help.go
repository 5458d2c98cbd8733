package router

// HelpText is the interactive help screen for the ai command family.
const HelpText = `
agentsh - AI-powered shell assistant

COMMANDS:
  ai <question>           Ask a question or get help
  ai run "task"           Get commands for a task
  ai explain 'command'    Explain what a command does
  ai fix                  Diagnose and fix the last error
  ai do "task"            Multi-step autonomous task

SYSTEM INFO:
  ai sysinfo              Show system information
  ai services             List running services
  ai packages             List installed packages

SETTINGS:
  ai mode <off|assist>    Switch AI mode
  ai history              Show AI command history
  ai clear                Clear the AI conversation
  ai help                 Show this help

EXAMPLES:
  ai find files larger than 100MB
  ai run "set up nginx with SSL"
  ai explain 'rsync -avz --delete src/ dst/'
  ai do "deploy the application to production"
  ai fix
`
