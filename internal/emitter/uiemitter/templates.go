package uiemitter

const pageTemplate = `{{define "base" -}}
import json
import logging
import typing

import pandas as pd
import requests
import streamlit as st

BACKEND_URL = {{quote .BackendURL}}

TIMEOUT = 5

_LOGGER = logging.getLogger(__name__)


class PageBase:
    """Base class for a Streamlit page over one collection."""

    def __init__(self, st: typing.Any, path: str, resource_type: str):
        self.st = st
        self.resource_type = resource_type
        self.api_url = BACKEND_URL + path

    def get_resources(self):
        try:
            response = requests.get(self.api_url, timeout=TIMEOUT)
            response.raise_for_status()
            return response.json()
        except requests.RequestException as e:
            self.st.error(f"Error fetching {self.resource_type}: {e}")
            return []

    def update_resource(self, resource_id: str, updated_data):
        try:
            response = requests.put(f"{self.api_url}/{resource_id}", json=updated_data, timeout=TIMEOUT)
            response.raise_for_status()
            self.st.toast(f"{self.resource_type} {resource_id} updated")
        except requests.RequestException as e:
            self.st.error(f"Error updating {resource_id}: {e}")

    def create_resource(self, new_data):
        try:
            response = requests.post(self.api_url, json=new_data, timeout=TIMEOUT)
            response.raise_for_status()
            self.st.toast(f"{self.resource_type} created")
        except requests.RequestException as e:
            self.st.error(f"Error creating {self.resource_type}: {e}")

    def delete_resource(self, resource_id):
        try:
            response = requests.delete(f"{self.api_url}/{resource_id}", timeout=TIMEOUT)
            response.raise_for_status()
            self.st.toast(f"{self.resource_type} {resource_id} deleted")
        except requests.RequestException as e:
            self.st.error(f"Error deleting {resource_id}: {e}")


def _changed(original, edited):
    return {k: v for k, v in edited.items() if original.get(k) != v}
{{- end}}

{{define "input"}}
{{- if eq .Type "NumberColumn"}}
            values[{{quote .Name}}] = st.number_input({{quote .Label}}, value=None, help={{quote .Description}})
{{- else if eq .Type "CheckboxColumn"}}
            values[{{quote .Name}}] = st.checkbox({{quote .Label}}, help={{quote .Description}})
{{- else if eq .Type "SelectboxColumn"}}
            values[{{quote .Name}}] = st.selectbox({{quote .Label}}, {{.Data}}, index=None, help={{quote .Description}})
{{- else if eq .Type "ListColumn"}}
            raw = st.text_input({{quote .Label}}, help="Comma separated. " + {{quote .Description}})
            values[{{quote .Name}}] = [v.strip() for v in raw.split(",") if v.strip()] if raw else None
{{- else if eq .Type "JsonColumn"}}
            raw = st.text_area({{quote .Label}}, help="JSON. " + {{quote .Description}})
            values[{{quote .Name}}] = json.loads(raw) if raw else None
{{- else}}
            values[{{quote .Name}}] = st.text_input({{quote .Label}}, help={{quote .Description}}) or None
{{- end}}
{{- end}}

{{define "page"}}


def {{.Func}}():
    """{{.Label}} grid."""
    st.subheader({{quote .Label}})
{{- range .PathParams}}
    {{.Ident}} = st.text_input({{quote .Label}}, key={{quote (printf "%s_%s" $.Name .Name)}})
    if not {{.Ident}}:
        st.info("Enter the {{.Label}} to load {{$.Label}}.")
        return
{{- end}}
    page = PageBase(st, f{{quote .PathExpr}}, {{quote .Name}})

    column_config = {
{{- range .Columns}}
        {{quote .Name}}: st.column_config.{{.Type}}(
            label={{quote .Label}},
            help={{quote .Description}},
{{- if .Required}}
            required=True,
{{- end}}
{{- if .Key}}
            disabled=True,
{{- end}}
{{- if .Data}}
            options={{.Data}},
{{- end}}
        ),
{{- end}}
    }
{{- if .Can "create"}}

    @st.dialog("Create {{.Label}}")
    def create():
        values = {}
        with st.form({{quote (printf "create_%s" .Name)}}):
{{- range .Inputs}}{{template "input" .}}{{end}}
            submitted = st.form_submit_button("Create")
        if submitted:
            page.create_resource({k: v for k, v in values.items() if v is not None})
            st.rerun()

    if st.button("Create", key={{quote (printf "create_button_%s" .Name)}}):
        create()
{{- end}}
{{- if .Can "list"}}

    resources = page.get_resources()
    df = pd.DataFrame(resources, columns=[{{range $i, $c := .Columns}}{{if $i}}, {{end}}{{quote $c.Name}}{{end}}])
    edited_df = st.data_editor(
        df,
        column_config=column_config,
        key={{quote (printf "editor_%s" .Name)}},
        num_rows="fixed",
        hide_index=True,
    )
{{- if .Can "update"}}

    for index, row in edited_df.iterrows():
        original_row = df.iloc[index].to_dict()
        edited_row = row.to_dict()
        if _changed(original_row, edited_row):
            page.update_resource(edited_row[{{quote .Key.Name}}], edited_row)
{{- end}}
{{- if .Can "delete"}}

    doomed = st.selectbox(
        "Delete {{.Label}}",
        df[{{quote .Key.Name}}].tolist() if {{quote .Key.Name}} in df else [],
        index=None,
        key={{quote (printf "delete_%s" .Name)}},
    )
    if doomed and st.button("Delete", key={{quote (printf "delete_button_%s" .Name)}}):
        page.delete_resource(doomed)
        st.rerun()
{{- end}}
{{- else}}
    st.info("{{.Label}} cannot be listed.")
{{- end}}
{{- end}}`

const appTemplate = `"""
{{.Meta.Title}} {{.Meta.Version}}

{{.Meta.Summary}}
"""

{{template "base" .}}
{{- range .Modules}}{{range .Pages}}{{template "page" .}}{{end}}{{end}}


st.set_page_config(
    page_title={{quote .Meta.Title}},
    layout="wide",
    initial_sidebar_state="collapsed",
)

pages = {
    {{quote .Meta.Title}}: [
{{- range .Modules}}{{range .Pages}}
        st.Page({{.Func}}, title={{quote .Label}}, url_path={{quote .Func}}),
{{- end}}{{end}}
    ]
}

st.navigation(pages).run()
`

const moduleTemplate = `"""
{{.Meta.Title}} page for {{range .Modules}}{{.Label}}{{end}}.
"""

{{template "base" .}}
{{- range .Modules}}{{range .Pages}}{{template "page" .}}{{end}}


tabs = st.tabs([{{range $i, $p := .Pages}}{{if $i}}, {{end}}{{quote $p.Label}}{{end}}])
{{- range $i, $p := .Pages}}
with tabs[{{$i}}]:
    {{$p.Func}}()
{{- end}}
{{- end}}
`
