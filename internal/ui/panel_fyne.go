//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"warehousemap/internal/domain"
	"warehousemap/internal/editor"
)

// propertyPanel is the form beside the canvas. load copies the controller's view of
// the selection into the widgets; Apply parses them back.
type propertyPanel struct {
	ctrl *editor.Controller

	kind                              *widget.Label
	label, quantity                   *widget.Entry
	fill, stroke, strokeWidth         *widget.Entry
	opacity, rotation                 *widget.Entry
	content, fontSize                 *widget.Entry
	x, y, width, height               *widget.Entry
	fontFamily, lineStyle, dir, align *widget.Select
	bold, italic, underline           *widget.Check
	apply                             *widget.Button
	form                              *widget.Form

	// onApply receives the outcome of Apply.
	onApply func([]editor.Notice, error)
}

func newPropertyPanel(ctrl *editor.Controller, onApply func([]editor.Notice, error)) *propertyPanel {
	p := &propertyPanel{ctrl: ctrl, onApply: onApply}
	p.kind = widget.NewLabel("")
	p.label = widget.NewEntry()
	p.label.SetPlaceHolder("A001")
	p.quantity = widget.NewEntry()
	p.fill = widget.NewEntry()
	p.stroke = widget.NewEntry()
	p.strokeWidth = widget.NewEntry()
	p.opacity = widget.NewEntry()
	p.rotation = widget.NewEntry()
	p.content = widget.NewEntry()
	p.fontSize = widget.NewEntry()
	p.x, p.y = widget.NewEntry(), widget.NewEntry()
	p.width, p.height = widget.NewEntry(), widget.NewEntry()
	p.fontFamily = widget.NewSelect(fontFamilies, nil)
	p.lineStyle = widget.NewSelect(lineStyles, nil)
	p.dir = widget.NewSelect(directions, nil)
	p.align = widget.NewSelect(alignments, nil)
	p.bold = widget.NewCheck("Bold", nil)
	p.italic = widget.NewCheck("Italic", nil)
	p.underline = widget.NewCheck("Underline", nil)
	p.apply = widget.NewButton("Apply", p.Apply)

	p.form = widget.NewForm(
		widget.NewFormItem("Element", p.kind),
		widget.NewFormItem("Address", p.label),
		widget.NewFormItem("Quantity", p.quantity),
		widget.NewFormItem("Fill", p.fill),
		widget.NewFormItem("Stroke", p.stroke),
		widget.NewFormItem("Stroke width", p.strokeWidth),
		widget.NewFormItem("Opacity %", p.opacity),
		widget.NewFormItem("Rotation", p.rotation),
		widget.NewFormItem("Line style", p.lineStyle),
		widget.NewFormItem("Text", p.content),
		widget.NewFormItem("Font", p.fontFamily),
		widget.NewFormItem("Font size", p.fontSize),
		widget.NewFormItem("Direction", p.dir),
		widget.NewFormItem("Alignment", p.align),
		widget.NewFormItem("X", p.x),
		widget.NewFormItem("Y", p.y),
		widget.NewFormItem("Width", p.width),
		widget.NewFormItem("Height", p.height),
	)
	p.load()
	return p
}

func (p *propertyPanel) object() fyne.CanvasObject {
	styles := container.NewHBox(p.bold, p.italic, p.underline)
	return container.NewVScroll(container.NewVBox(p.form, styles, p.apply))
}

// load refreshes the widgets from the selection, or the panel defaults without one.
func (p *propertyPanel) load() {
	props, ok := p.ctrl.Properties()
	if ok {
		p.kind.SetText(string(props.Kind))
	} else {
		p.kind.SetText("nothing selected")
	}
	p.label.SetText(props.Label)
	p.quantity.SetText(strconv.Itoa(props.Quantity))
	p.fill.SetText(props.FillColor)
	p.stroke.SetText(props.StrokeColor)
	p.strokeWidth.SetText(formatNumber(props.StrokeWidth))
	p.opacity.SetText(strconv.Itoa(props.OpacityPercent))
	p.rotation.SetText(formatNumber(props.RotationDegrees))
	p.content.SetText(props.Content)
	p.fontSize.SetText(formatNumber(props.FontSize))
	p.x.SetText(formatNumber(props.X))
	p.y.SetText(formatNumber(props.Y))
	p.width.SetText(formatNumber(props.Width))
	p.height.SetText(formatNumber(props.Height))
	p.fontFamily.SetSelected(props.FontFamily)
	p.lineStyle.SetSelected(string(props.LineStyle))
	p.dir.SetSelected(string(props.Direction))
	p.align.SetSelected(string(props.Alignment))
	p.bold.SetChecked(props.Bold)
	p.italic.SetChecked(props.Italic)
	p.underline.SetChecked(props.Underline)

	readOnly := !p.ctrl.Admin()
	for _, e := range []*widget.Entry{p.label, p.quantity, p.fill, p.stroke, p.strokeWidth,
		p.opacity, p.rotation, p.content, p.fontSize, p.x, p.y, p.width, p.height} {
		if readOnly {
			e.Disable()
		} else {
			e.Enable()
		}
	}
	if readOnly {
		p.apply.Disable()
	} else {
		p.apply.Enable()
	}
}

func (p *propertyPanel) read() (editor.Properties, error) {
	props, _ := p.ctrl.Properties()
	var errs []error
	num := func(field string, e *widget.Entry) float64 {
		v, err := parseNumber(field, e.Text)
		errs = append(errs, err)
		return v
	}
	count := func(field string, e *widget.Entry) int {
		v, err := parseCount(field, e.Text)
		errs = append(errs, err)
		return v
	}
	props.Label = p.label.Text
	props.Quantity = count("quantity", p.quantity)
	props.FillColor = p.fill.Text
	props.StrokeColor = p.stroke.Text
	props.StrokeWidth = num("stroke width", p.strokeWidth)
	props.OpacityPercent = count("opacity", p.opacity)
	props.RotationDegrees = num("rotation", p.rotation)
	props.Content = p.content.Text
	props.FontSize = num("font size", p.fontSize)
	props.X = num("x", p.x)
	props.Y = num("y", p.y)
	props.Width = num("width", p.width)
	props.Height = num("height", p.height)
	props.FontFamily = p.fontFamily.Selected
	props.LineStyle = domain.LineStyle(p.lineStyle.Selected)
	props.Direction = domain.Direction(p.dir.Selected)
	props.Alignment = domain.Alignment(p.align.Selected)
	props.Bold, props.Italic, props.Underline = p.bold.Checked, p.italic.Checked, p.underline.Checked
	return props, errors.Join(errs...)
}

// Apply pushes the form into the controller.
func (p *propertyPanel) Apply() {
	props, err := p.read()
	var notices []editor.Notice
	if err == nil {
		notices, err = p.ctrl.ApplyProperties(props)
	}
	if err == nil {
		p.load()
	}
	if p.onApply != nil {
		p.onApply(notices, err)
	}
}
