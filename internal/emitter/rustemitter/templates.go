package rustemitter

// moduleBody renders one resource: context, subcommand enums, argument
// structs and handlers. It is executed with a Module.
const moduleBody = `{{define "module" -}}
{{- $m := . -}}
use clap::{Args, Subcommand, ValueEnum};
use std::sync::Arc;

use {{$m.ClientPkg}}::apis::configuration::Configuration;
use {{$m.ClientPkg}}::apis::{{$m.API}};

pub struct ApiContext {
    pub api_client: Arc<Configuration>,
}
{{- range $m.Enums}}

#[allow(non_camel_case_types)]
#[derive(ValueEnum, Clone, Debug)]
pub enum {{.EnumType}} {
{{- range .Variants}}
    #[value(name = {{quote .Value}})]
    {{.CLI}},
{{- end}}
}
{{- end}}
{{- range $g := $m.Groups}}

#[derive(Subcommand, Debug)]
pub enum {{$g.Pascal}}Commands {
{{- range $c := $g.Commands}}
    /// {{doc $c.Description}}
    {{$c.Pascal}}({{$c.ArgsType}}),
{{- end}}
{{- range $g.Children}}
    /// {{pretty .Name}} operations
    #[command(subcommand)]
    {{.Pascal}}({{.Pascal}}Commands),
{{- end}}
}
{{- range $c := $g.Commands}}

#[derive(Args, Debug)]
pub struct {{$c.ArgsType}} {
{{- range $a := $c.Attrs}}
    /// {{doc $a.Description}}
{{- if $a.Positional}}
    #[arg(value_name = {{quote (upper $a.Name)}})]
{{- else if $a.Multiple}}
    #[arg(long = {{quote $a.Flag}}, value_delimiter = ','{{if isset $a.Default}}, default_value = {{quote (printf "%v" $a.Default)}}{{end}})]
{{- else}}
    #[arg(long = {{quote $a.Flag}}{{if isset $a.Default}}, default_value = {{quote (printf "%v" $a.Default)}}{{end}})]
{{- end}}
    pub {{$a.Identifier}}: {{$c.ArgType $a}},
{{- end}}
}
{{- end}}

pub async fn {{$g.Handler}}(
    ctx: &ApiContext,
    cmd: &{{$g.Pascal}}Commands,
) -> Result<(), Box<dyn std::error::Error>> {
    match cmd {
{{- range $c := $g.Commands}}
        {{$g.Pascal}}Commands::{{$c.Pascal}}(args) => {
            log::debug!("{{$c.ID}}: {:?}", args);
{{- if $c.Model}}
            let body = {{$c.Model}} {
{{- range $c.Body}}
{{- if .Note}}
                // {{.Note}}
{{- end}}
                {{.Name}}: {{.Expr}},
{{- end}}
                ..Default::default()
            };
{{- end}}
            let resp = {{$m.API}}::{{$c.ID}}(&ctx.api_client{{range $c.CallArgs}}, {{.}}{{end}}).await?;
            println!("{}", serde_json::to_string(&resp)?);
        }
{{- end}}
{{- range $g.Children}}
        {{$g.Pascal}}Commands::{{.Pascal}}(sub) => {{.Handler}}(ctx, sub).await?,
{{- end}}
    }
    Ok(())
}
{{- end}}
{{- end}}`

const mainTemplate = `// {{.Meta.Title}} {{.Meta.Version}}
//
// {{doc .Meta.Summary}}

use clap::{Parser, Subcommand};
use std::sync::Arc;

use {{.ClientPkg}}::apis::configuration::Configuration;
{{range .Modules}}
pub mod {{.Ident}} {
    {{- template "module" .}}
}
{{end}}
#[derive(Parser, Debug)]
#[command(name = {{quote .Pkg}})]
#[command(version = {{quote .Meta.Version}})]
#[command(about = {{quote .Meta.Title}}, long_about = {{quote (doc .Meta.Description)}})]
struct Cli {
    /// Turn on debugging
    #[arg(long)]
    debug: bool,

    /// The API key to authorize against API
    #[arg(long, env = "API_KEY")]
    api_key: Option<String>,

    /// The URL to the API
    #[arg(long, env = "API_URL")]
    api_url: String,

    #[command(subcommand)]
    command: Commands,
}

#[derive(Subcommand, Debug)]
enum Commands {
{{- range .Modules}}
    /// {{pretty .Kind}} operations
    #[command(subcommand)]
    {{.Pascal}}({{.Ident}}::{{.Top.Pascal}}Commands),
{{- end}}
}

#[tokio::main]
async fn main() -> Result<(), Box<dyn std::error::Error>> {
    let cli = Cli::parse();
    let level = if cli.debug {
        log::LevelFilter::Debug
    } else {
        log::LevelFilter::Info
    };
    env_logger::Builder::from_default_env().filter_level(level).init();

    let mut config = Configuration::default();
    config.base_path = cli.api_url.clone();
    if let Some(key) = cli.api_key {
        config.bearer_access_token = Some(key);
    }
    let config = Arc::new(config);

    match &cli.command {
{{- range .Modules}}
        Commands::{{.Pascal}}(cmd) => {
            let ctx = {{.Ident}}::ApiContext {
                api_client: config.clone(),
            };
            {{.Ident}}::{{.Top.Handler}}(&ctx, cmd).await?;
        }
{{- end}}
    }
    Ok(())
}
`

const moduleTemplate = `// {{.Meta.Title}} CLI module for {{range .Modules}}{{.Kind}}{{end}}
{{range .Modules}}
{{template "module" .}}
{{end}}`
