package pyemitter

// groupsTemplate holds the partials shared by the main and module
// templates. Custom templates can call them too.
const groupsTemplate = `{{define "imports" -}}
import functools
import json
import logging
import os
import sys

import click
from firestone_lib import cli
from firestone_lib import utils as firestone_utils

from {{.ClientPkg}} import api_client
from {{.ClientPkg}} import configuration
from {{.ClientPkg}} import exceptions
{{- range .Modules}}
from {{$.ClientPkg}}.api import {{.API}}
{{- range .Imports}}
from {{$.ClientPkg}}.models import {{.Module}} as {{.Alias}}
{{- end}}
{{- end}}

_LOGGER = logging.getLogger("{{.Pkg}}")


def api_exc(func):
    """Handle ApiExceptions in all functions."""

    async def wrapper(*args, **kwargs):
        try:
            return await func(*args, **kwargs)
        except exceptions.ApiException as apie:
            click.echo(apie.body if apie.body else apie.reason)
            api_obj = args[0].get("api_obj")
            if api_obj:
                await api_obj.api_client.close()
        sys.exit(-1)

    return functools.update_wrapper(wrapper, func)


def _compact(params):
    return {k: v for k, v in params.items() if v is not None}


def _echo(resp):
    if isinstance(resp, list):
        click.echo(json.dumps([obj.to_dict() for obj in resp]))
        return
    if resp:
        click.echo(json.dumps(resp.to_dict()))
        return
    click.echo("No data returned")
{{- end}}

{{define "option"}}
@click.option(
    "--{{.Flag}}",
    help={{quote .Description}},
    type={{clickType .}},
{{- if isset .Default}}
    default={{pyvalue .Default}},
    show_default=True,
{{- end}}
    required={{if .Required}}True{{else}}False{{end}},
)
{{- end}}

{{define "groups"}}
{{- $root := .Root}}
{{- range $m := .Modules}}
{{- range $g := $m.Groups}}


{{if $g.TopLevel}}@{{$root}}.group("{{$g.Name}}"){{else}}@{{$g.Parent}}.group("{{$g.Name}}"){{end}}
@click.pass_obj
def {{$g.Func}}(ctx_obj):
    """Commands for {{pretty $g.Name}}."""
    _LOGGER.debug(f"ctx_obj: {ctx_obj}")
    ctx_obj["api_obj"] = {{$m.API}}.{{$m.APIClass}}(api_client=ctx_obj["api_client"])
{{- range $c := $g.Commands}}


@{{$g.Func}}.command("{{$c.Name}}")
{{- range $c.Query}}{{template "option" .}}{{end}}
{{- range $c.Body}}{{template "option" .}}{{end}}
{{- range $c.Args}}
@click.argument("{{pyident .Identifier}}", type={{clickType .}})
{{- end}}
@click.pass_obj
@firestone_utils.click_coro
@api_exc
async def {{$c.Func}}(ctx_obj{{range $c.Attrs}}, {{pyident .Identifier}}{{end}}):
    """{{$c.Description}}"""
    api_obj = ctx_obj["api_obj"]
    params = _compact(
        {
{{- range $c.Query}}
            "{{.Name}}": {{pyident .Identifier}},
{{- end}}
        }
    )
{{- if $c.Model}}
    body = _compact(
        {
{{- range $c.Body}}
            "{{.Name}}": {{pyident .Identifier}},
{{- end}}
        }
    )
    req_body = {{$c.Model}}(**body)
    resp = await api_obj.{{$c.Func}}({{range $c.Args}}{{pyident .Identifier}}, {{end}}req_body, **params)
{{- else}}
    resp = await api_obj.{{$c.Func}}({{range $c.Args}}{{pyident .Identifier}}, {{end}}**params)
{{- end}}
    _LOGGER.debug(f"resp: {resp}")
    _echo(resp)
{{- end}}
{{- end}}
{{- end}}
{{- end}}`

const mainTemplate = `#!/usr/bin/env python
"""
Main entry point for the {{.Meta.Title}} CLI.

{{.Meta.Summary}}
"""
{{template "imports" .}}


@click.group()
@click.option("--debug", help="Turn on debugging", is_flag=True)
@click.option(
    "--api-key",
    help="The API key to authorize against API",
    envvar="API_KEY",
)
@click.option(
    "--api-url",
    help="The URL to the API",
    required=True,
    envvar="API_URL",
)
@click.option("--trust-proxy", help="Trust the proxy env vars", is_flag=True, default=False)
@click.pass_context
def main(ctx, debug, api_key, api_url, trust_proxy):
    """{{.Meta.Title}} {{.Meta.Version}}

    {{.Meta.Description}}
    """
    logging.basicConfig(
        level=logging.DEBUG if debug else logging.INFO,
        format="# %(asctime)s - %(name)s:%(lineno)d %(levelname)s - %(message)s",
    )
    if not trust_proxy:
        for prefix in ["http", "https", "all_http", "all_https"]:
            os.environ.pop(f"{prefix}_proxy", None)

    config = configuration.Configuration(host=api_url)
    config.debug = debug
    if api_key:
        config.access_token = api_key

    ctx.obj = {
        "api_client": api_client.ApiClient(configuration=config),
    }
{{- template "groups" .}}


if __name__ == "__main__":
    main()
`

const moduleTemplate = `#!/usr/bin/env python
"""
{{.Meta.Title}} CLI module for {{range .Modules}}{{.Kind}}{{end}}
"""
{{template "imports" .}}
{{- template "groups" .}}


def init():
    """Initialize the resource CLI."""
{{- range .Modules}}{{range .Groups}}{{if .TopLevel}}
    return {{.Func}}
{{- end}}{{end}}{{end}}
`
